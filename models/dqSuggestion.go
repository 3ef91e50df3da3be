package models

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
)

// DqSuggestion is one suggestion returned for an entity run. SEVERITY is
// what the reasoning service asserted; RULE_SEVERITY is the highest tier the
// rule packs assigned in the same run and is the authoritative one.
type DqSuggestion struct {
	ID                  uint      `gorm:"primary_key;column:ID" json:"id"`
	SkIdCurr            int64     `gorm:"column:SK_ID_CURR;not null;index" json:"sk_id_curr"`
	SourceTable         string    `gorm:"column:TABLE_NAME;size:64" json:"table_name"`
	ColumnName          string    `gorm:"column:COLUMN_NAME;size:128" json:"column_name"`
	IssueDescription    string    `gorm:"column:ISSUE_DESCRIPTION;type:mediumtext" json:"issue_description"`
	RawLlmOutput        string    `gorm:"column:RAW_LLM_OUTPUT;type:mediumtext" json:"raw_llm_output"`
	AiSuggestion        []byte    `gorm:"column:AI_SUGGESTION;type:json" json:"ai_suggestion"`
	DqDimension         string    `gorm:"column:DQ_DIMENSION;size:40" json:"dq_dimension"`
	Suggestion          string    `gorm:"column:SUGGESTION;type:text" json:"suggestion"`
	Severity            string    `gorm:"column:SEVERITY;size:10" json:"severity"`
	RuleSeverity        string    `gorm:"column:RULE_SEVERITY;size:10" json:"rule_severity"`
	ConfidenceScore     float64   `gorm:"column:CONFIDENCE_SCORE" json:"confidence_score"`
	Rationale           string    `gorm:"column:RATIONALE;type:text" json:"rationale"`
	RootCauseHypothesis *string   `gorm:"column:ROOT_CAUSE_HYPOTHESIS;type:text" json:"root_cause_hypothesis"`
	LineageHypothesis   []byte    `gorm:"column:LINEAGE_HYPOTHESIS;type:json" json:"lineage_hypothesis"`
	FollowUpChecks      []byte    `gorm:"column:FOLLOW_UP_CHECKS;type:json" json:"follow_up_checks"`
	Abstained           bool      `gorm:"column:ABSTAINED;not null;default:false" json:"abstained"`
	CorrelationId       string    `gorm:"column:CORRELATION_ID;size:64;index" json:"correlation_id"`
	Timestamp           time.Time `gorm:"column:TIMESTAMP;autoCreateTime;index" json:"timestamp"`
}

func (DqSuggestion) TableName() string { return "DQ_AI_SUGGESTIONS" }

// SuggestionBatch is everything persisted after one reasoner call.
type SuggestionBatch struct {
	EntityID      int64
	CorrelationId string
	Request       reasoner.Request
	Raw           string
	Suggestions   []reasoner.Suggestion
	Abstained     bool
	RuleSeverity  string
	CreatedAt     time.Time
}

// Rows expands the batch into one stored row per suggestion. The first
// issue of the request names the table and column, as the dashboard groups
// by them.
func (b SuggestionBatch) Rows() []DqSuggestion {
	issueJSON := string(utils.MustMarshalJSON(b.Request.Issues))
	var table, column string
	if len(b.Request.Issues) > 0 {
		table = b.Request.Issues[0].Table
		column = b.Request.Issues[0].Column
	}
	rows := make([]DqSuggestion, 0, len(b.Suggestions))
	for _, s := range b.Suggestions {
		rows = append(rows, DqSuggestion{
			SkIdCurr:            b.EntityID,
			SourceTable:         table,
			ColumnName:          column,
			IssueDescription:    issueJSON,
			RawLlmOutput:        b.Raw,
			AiSuggestion:        utils.MustMarshalJSON(s),
			DqDimension:         s.DQDimension,
			Suggestion:          s.Suggestion,
			Severity:            s.Severity,
			RuleSeverity:        b.RuleSeverity,
			ConfidenceScore:     reasoner.ClampConfidence(s.Confidence),
			Rationale:           s.Rationale,
			RootCauseHypothesis: s.RootCauseHypothesis,
			LineageHypothesis:   utils.MustMarshalJSON(s.LineageHypothesis),
			FollowUpChecks:      utils.MustMarshalJSON(s.FollowUpChecks),
			Abstained:           b.Abstained,
			CorrelationId:       b.CorrelationId,
			Timestamp:           b.CreatedAt,
		})
	}
	return rows
}

// Decode returns the stored suggestion, falling back to the flat columns
// when AI_SUGGESTION is unreadable.
func (s DqSuggestion) Decode() reasoner.Suggestion {
	var out reasoner.Suggestion
	if len(s.AiSuggestion) > 0 && json.Unmarshal(s.AiSuggestion, &out) == nil {
		return out
	}
	out = reasoner.Suggestion{
		DQDimension:         s.DqDimension,
		Suggestion:          s.Suggestion,
		Severity:            s.Severity,
		Confidence:          s.ConfidenceScore,
		Rationale:           s.Rationale,
		RootCauseHypothesis: s.RootCauseHypothesis,
	}
	_ = json.Unmarshal(s.LineageHypothesis, &out.LineageHypothesis)
	_ = json.Unmarshal(s.FollowUpChecks, &out.FollowUpChecks)
	return out
}

// Card renders the stored suggestion for display, carrying the rule
// severity next to the asserted one.
func (s DqSuggestion) Card() reasoner.Card {
	card := reasoner.Format(s.Decode())
	if s.RuleSeverity != "" {
		card.RuleSeverity = reasoner.SeverityTag(s.RuleSeverity)
	}
	return card
}
