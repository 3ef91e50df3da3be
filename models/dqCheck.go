package models

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
)

// DqCheck is one row of a check store. The four stores (APP_CHECKS,
// BUREAU_CHECKS, PREV_APP_CHECKS, INST_CHECKS) share this schema and are
// addressed with db.Table.
type DqCheck struct {
	ID           uint      `gorm:"primary_key;column:ID" json:"id"`
	SourceTable  string    `gorm:"column:TABLE_NAME;size:64;not null" json:"table_name"`
	ColumnName   string    `gorm:"column:COLUMN_NAME;size:128;not null" json:"column_name"`
	CheckType    string    `gorm:"column:CHECK_TYPE;size:40;not null;index" json:"check_type"`
	CheckDetails []byte    `gorm:"column:CHECK_DETAILS;type:json" json:"check_details"`
	Severity     string    `gorm:"column:SEVERITY;size:10;not null" json:"severity"`
	SkIdCurr     int64     `gorm:"column:SK_ID_CURR;not null;index" json:"sk_id_curr"`
	SkIdPrev     *int64    `gorm:"column:SK_ID_PREV" json:"sk_id_prev"`
	SkIdBureau   *int64    `gorm:"column:SK_ID_BUREAU" json:"sk_id_bureau"`
	Timestamp    time.Time `gorm:"column:TIMESTAMP;autoCreateTime;index" json:"timestamp"`
}

// NewDqCheck maps an observation to its stored row. Key columns the table
// does not carry stay NULL.
func NewDqCheck(obs dqcheck.Observation) (DqCheck, error) {
	details, err := json.Marshal(obs.Detail)
	if err != nil {
		return DqCheck{}, err
	}
	return DqCheck{
		SourceTable:  obs.Table,
		ColumnName:   obs.Column,
		CheckType:    string(obs.Kind),
		CheckDetails: details,
		Severity:     obs.Severity.String(),
		SkIdCurr:     obs.Key.Curr,
		SkIdPrev:     obs.Key.Prev,
		SkIdBureau:   obs.Key.Bureau,
		Timestamp:    obs.CreatedAt,
	}, nil
}

// Observation converts a stored row back for display and reporting.
func (c DqCheck) Observation() dqcheck.Observation {
	obs := dqcheck.Observation{
		Table:     c.SourceTable,
		Column:    c.ColumnName,
		Kind:      dqcheck.IssueKind(c.CheckType),
		Key:       dqcheck.EntityKey{Curr: c.SkIdCurr, Prev: c.SkIdPrev, Bureau: c.SkIdBureau},
		CreatedAt: c.Timestamp,
	}
	if len(c.CheckDetails) > 0 {
		_ = json.Unmarshal(c.CheckDetails, &obs.Detail)
	}
	if sev, err := dqcheck.ParseSeverity(c.Severity); err == nil {
		obs.Severity = sev
	}
	return obs
}
