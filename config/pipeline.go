package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultReasonerURL = "http://127.0.0.1:8001/analyze_combined"
	DefaultQueryLimit  = 10
)

// PipelineSettings holds the knobs of the per-entity pipeline.
type PipelineSettings struct {
	ReasonerURL     string        `validate:"required,url"`
	ReasonerTimeout time.Duration `validate:"gt=0"`
	LockTTL         time.Duration `validate:"gt=0"`
	LockWait        time.Duration `validate:"gte=0"`
	QueryLimit      int           `validate:"gt=0,lte=1000"`
	DescriptionTTL  time.Duration `validate:"gte=0"`
	RulesFile       string
	EntityTopic     string
	CreateTopic     bool
	ReportBucket    string
	JWTSecret       string
}

var settingsValidator = validator.New()

// LoadPipelineSettings reads DQ_* variables with their defaults and
// validates the result.
func LoadPipelineSettings() (PipelineSettings, error) {
	s := PipelineSettings{
		ReasonerURL:     stringFromEnv("DQ_REASONER_URL", defaultReasonerURL),
		ReasonerTimeout: durationFromEnv("DQ_REASONER_TIMEOUT", 60*time.Second),
		LockTTL:         durationFromEnv("DQ_LOCK_TTL", 5*time.Minute),
		LockWait:        durationFromEnv("DQ_LOCK_WAIT", 10*time.Second),
		QueryLimit:      intFromEnv("DQ_QUERY_LIMIT", DefaultQueryLimit),
		DescriptionTTL:  durationFromEnv("DQ_DESCRIPTION_CACHE_TTL", time.Hour),
		RulesFile:       strings.TrimSpace(os.Getenv("DQ_RULES_FILE")),
		EntityTopic:     stringFromEnv("DQ_ENTITY_TOPIC", "dq-entity"),
		CreateTopic:     envBoolDefault("DQ_CREATE_TOPIC", false),
		ReportBucket:    strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		JWTSecret:       os.Getenv("DQ_JWT_SECRET"),
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s PipelineSettings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid pipeline settings: %w", err)
	}
	return nil
}

func stringFromEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// durationFromEnv accepts Go durations ("90s") or plain seconds ("90").
func durationFromEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if val == "" {
		return def
	}
	return val == "1" || val == "true" || val == "yes" || val == "y"
}
