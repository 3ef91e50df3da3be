package dqapi

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"bitbucket.org/mmdatafocus/dq_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Processor runs the pipeline. *workflow.Orchestrator implements it.
type Processor interface {
	ProcessEntity(ctx context.Context, entityID int64) (*workflow.RunReport, error)
	ProfileAll(ctx context.Context, truncateFirst bool) ([]workflow.TableProfile, error)
}

// Queries is the read side. *models.GormStore implements it.
type Queries interface {
	LatestIssues(ctx context.Context, entityID int64, limit int) ([]models.DqCheck, error)
	LatestSuggestions(ctx context.Context, entityID int64, limit int) ([]models.DqSuggestion, error)
	LatestRuns(ctx context.Context, entityID int64, limit int) ([]models.DqRun, error)
	IssueSummary(ctx context.Context, entityID int64) ([]models.IssueCount, error)
}

// ReportUploader archives a rendered workbook and returns its location.
type ReportUploader func(ctx context.Context, bucket string, entityID int64, correlationId string, data []byte) (string, error)

type Deps struct {
	Processor    Processor
	Queries      Queries
	Publisher    Publisher
	Uploader     ReportUploader
	ReportBucket string
	QueryLimit   int
	JWTSecret    []byte
	Logger       *logrus.Logger
}

var (
	_ Processor = (*workflow.Orchestrator)(nil)
	_ Queries   = (*models.GormStore)(nil)
)

// IssueResponse is one stored observation as returned by the API.
type IssueResponse struct {
	Table      string    `json:"table"`
	Column     string    `json:"column"`
	CheckType  string    `json:"check_type"`
	Detail     string    `json:"detail"`
	Severity   string    `json:"severity"`
	SkIdCurr   int64     `json:"sk_id_curr"`
	SkIdPrev   *int64    `json:"sk_id_prev"`
	SkIdBureau *int64    `json:"sk_id_bureau"`
	Timestamp  time.Time `json:"timestamp"`
}

type SuggestionResponse struct {
	ID            uint                `json:"id"`
	Table         string              `json:"table"`
	Column        string              `json:"column"`
	Suggestion    reasoner.Suggestion `json:"suggestion"`
	RuleSeverity  string              `json:"rule_severity"`
	Abstained     bool                `json:"abstained"`
	CorrelationId string              `json:"correlation_id"`
	Timestamp     time.Time           `json:"timestamp"`
}

type ListResponse[T any] struct {
	EntityID int64 `json:"entity_id"`
	Items    []T   `json:"items"`
}

// EntityMessage is the Pub/Sub payload that asks for an entity run.
type EntityMessage struct {
	EntityID      int64  `json:"entity_id"`
	CorrelationId string `json:"correlation_id,omitempty"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func mapIssue(c models.DqCheck) IssueResponse {
	return IssueResponse{
		Table:      c.SourceTable,
		Column:     c.ColumnName,
		CheckType:  c.CheckType,
		Detail:     c.Observation().DetailText(),
		Severity:   c.Severity,
		SkIdCurr:   c.SkIdCurr,
		SkIdPrev:   c.SkIdPrev,
		SkIdBureau: c.SkIdBureau,
		Timestamp:  c.Timestamp,
	}
}

func mapSuggestion(s models.DqSuggestion) SuggestionResponse {
	return SuggestionResponse{
		ID:            s.ID,
		Table:         s.SourceTable,
		Column:        s.ColumnName,
		Suggestion:    s.Decode(),
		RuleSeverity:  s.RuleSeverity,
		Abstained:     s.Abstained,
		CorrelationId: s.CorrelationId,
		Timestamp:     s.Timestamp,
	}
}
