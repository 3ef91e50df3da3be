package models

import "time"

const (
	DqRunStatusSuccess = "success"
	DqRunStatusAborted = "aborted"
	DqRunStatusFailed  = "failed"
)

// DqRun is the history row of one orchestration run. It is kept across
// reprocessing.
type DqRun struct {
	ID                 uint       `gorm:"primary_key;column:ID" json:"id"`
	SkIdCurr           int64      `gorm:"column:SK_ID_CURR;not null;index" json:"sk_id_curr"`
	CorrelationId      string     `gorm:"column:CORRELATION_ID;size:64;uniqueIndex" json:"correlation_id"`
	TriggeredBy        string     `gorm:"column:TRIGGERED_BY;size:20" json:"triggered_by"`
	Status             string     `gorm:"column:STATUS;size:20;not null" json:"status"`
	RowsScanned        int        `gorm:"column:ROWS_SCANNED" json:"rows_scanned"`
	RejectedRows       int        `gorm:"column:REJECTED_ROWS" json:"rejected_rows"`
	IssuesFound        int        `gorm:"column:ISSUES_FOUND" json:"issues_found"`
	IssueWriteFailures int        `gorm:"column:ISSUE_WRITE_FAILURES" json:"issue_write_failures"`
	RequestIssues      int        `gorm:"column:REQUEST_ISSUES" json:"request_issues"`
	Suggestions        int        `gorm:"column:SUGGESTIONS" json:"suggestions"`
	Abstained          bool       `gorm:"column:ABSTAINED;not null;default:false" json:"abstained"`
	MaxSeverity        string     `gorm:"column:MAX_SEVERITY;size:10" json:"max_severity"`
	LastError          *string    `gorm:"column:LAST_ERROR;type:text" json:"last_error"`
	StartedAt          time.Time  `gorm:"column:STARTED_AT" json:"started_at"`
	FinishedAt         *time.Time `gorm:"column:FINISHED_AT" json:"finished_at"`
	DurationMs         int64      `gorm:"column:DURATION_MS" json:"duration_ms"`
}

func (DqRun) TableName() string { return "DQ_RUNS" }
