package reasoner

import (
	"time"
)

// RequestIssue is one distinct issue of an entity, enriched with the column
// description from the dictionary.
type RequestIssue struct {
	Table       string `json:"table" binding:"required"`
	Column      string `json:"column" binding:"required"`
	Description string `json:"description"`
	Summary     string `json:"summary" binding:"required"`
}

// Request is the consolidated investigation request for one entity.
type Request struct {
	EntityID int64          `json:"entity_id" binding:"required,gt=0"`
	Issues   []RequestIssue `json:"issues" binding:"dive"`
}

type LineageLink struct {
	FromTable string `json:"from_table"`
	ToTable   string `json:"to_table"`
	Key       string `json:"key"`
	Reason    string `json:"reason"`
}

type Suggestion struct {
	DQDimension         string        `json:"dq_dimension"`
	Suggestion          string        `json:"suggestion"`
	RuleTemplateSQL     *string       `json:"rule_template_sql"`
	Severity            string        `json:"severity"`
	Confidence          float64       `json:"confidence"`
	Rationale           string        `json:"rationale"`
	AnomalySignature    *string       `json:"anomaly_signature"`
	RootCauseHypothesis *string       `json:"root_cause_hypothesis"`
	LineageHypothesis   []LineageLink `json:"lineage_hypothesis"`
	FollowUpChecks      []string      `json:"follow_up_checks"`
}

const (
	AbstainSuggestion = "Abstain"
	AbstainRationale  = "Failed to parse model output"
)

// Abstain is the record stored when no usable suggestion came back.
func Abstain() Suggestion {
	return Suggestion{
		DQDimension:       "Unknown",
		Suggestion:        AbstainSuggestion,
		Severity:          "low",
		Confidence:        0.0,
		Rationale:         AbstainRationale,
		LineageHypothesis: []LineageLink{},
		FollowUpChecks:    []string{},
	}
}

func (s Suggestion) IsAbstain() bool {
	return s.Suggestion == AbstainSuggestion && s.Confidence == 0
}

// Result is what an Analyze call produced. Suggestions is never empty; when
// Abstained is set it holds the single abstain record and Err the cause.
type Result struct {
	Suggestions []Suggestion
	Raw         string
	Abstained   bool
	Err         error
	Latency     time.Duration
}

func abstainResult(raw string, err error) Result {
	return Result{
		Suggestions: []Suggestion{Abstain()},
		Raw:         raw,
		Abstained:   true,
		Err:         err,
	}
}

// Envelope is the response body of the bundled reasoning service.
type Envelope struct {
	RawOutput  string       `json:"raw_output"`
	ParsedJSON []Suggestion `json:"parsed_json"`
}
