package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
)

// ErrUnknownTable is returned when the registry and the store disagree on a
// table name.
var ErrUnknownTable = dqcheck.ErrUnknownTable

// Store is the persistence the orchestrator needs. models.GormStore is the
// MySQL implementation.
type Store interface {
	LoadEntityRows(ctx context.Context, table string, entityID int64) ([]dqcheck.Row, error)
	LoadTableRows(ctx context.Context, table string) ([]dqcheck.Row, error)
	ResetEntity(ctx context.Context, entityID int64, checkTables []string) error
	TruncateChecks(ctx context.Context, checkTables []string) error
	InsertIssue(ctx context.Context, checkTable string, obs dqcheck.Observation) error
	DescribeColumn(ctx context.Context, table, column string) (string, bool, error)
	InsertSuggestions(ctx context.Context, batch models.SuggestionBatch) error
	RecordRun(ctx context.Context, run *models.DqRun) error
}

// Reasoner turns a consolidated request into suggestions. Implementations
// never fail; unusable answers come back as an abstain result.
type Reasoner interface {
	Analyze(ctx context.Context, req reasoner.Request) reasoner.Result
}

var (
	_ Store    = (*models.GormStore)(nil)
	_ Reasoner = (*reasoner.Client)(nil)
)
