package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// IssueCount is one line of the per-entity issue summary.
type IssueCount struct {
	SourceTable string `gorm:"column:TABLE_NAME" json:"table_name"`
	CheckType   string `gorm:"column:CHECK_TYPE" json:"check_type"`
	Severity    string `gorm:"column:SEVERITY" json:"severity"`
	Total       int64  `gorm:"column:TOTAL" json:"total"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

// LatestIssues returns the newest observations of the entity across every
// check store, newest first.
func (s *GormStore) LatestIssues(ctx context.Context, entityID int64, limit int) ([]DqCheck, error) {
	limit = normalizeLimit(limit)
	var merged []DqCheck
	for _, t := range s.CheckTables() {
		var rows []DqCheck
		err := s.db.WithContext(ctx).Table(t).
			Where("SK_ID_CURR = ?", entityID).
			Order("TIMESTAMP DESC").Order("ID DESC").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("latest issues from %s: %w", t, err)
		}
		merged = append(merged, rows...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *GormStore) LatestSuggestions(ctx context.Context, entityID int64, limit int) ([]DqSuggestion, error) {
	var rows []DqSuggestion
	err := s.db.WithContext(ctx).
		Where("SK_ID_CURR = ?", entityID).
		Order("TIMESTAMP DESC").Order("ID DESC").
		Limit(normalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) LatestRuns(ctx context.Context, entityID int64, limit int) ([]DqRun, error) {
	var rows []DqRun
	err := s.db.WithContext(ctx).
		Where("SK_ID_CURR = ?", entityID).
		Order("STARTED_AT DESC").Order("ID DESC").
		Limit(normalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// IssueSummary counts the entity's observations by table, kind and tier.
func (s *GormStore) IssueSummary(ctx context.Context, entityID int64) ([]IssueCount, error) {
	tables := s.CheckTables()
	if len(tables) == 0 {
		return nil, nil
	}
	parts := make([]string, 0, len(tables))
	args := make([]interface{}, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf("SELECT TABLE_NAME, CHECK_TYPE, SEVERITY FROM `%s` WHERE SK_ID_CURR = ?", t))
		args = append(args, entityID)
	}
	sql := `
SELECT
    c.TABLE_NAME,
    c.CHECK_TYPE,
    c.SEVERITY,
    COUNT(*) AS TOTAL
FROM
    (` + strings.Join(parts, "\n    UNION ALL\n    ") + `) AS c
GROUP BY
    c.TABLE_NAME, c.CHECK_TYPE, c.SEVERITY
ORDER BY
    c.TABLE_NAME, c.CHECK_TYPE, c.SEVERITY;
`
	var records []IssueCount
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CheckTables lists the configured check tables in name order.
func (s *GormStore) CheckTables() []string {
	tables := make([]string, 0, len(s.checkTables))
	for t := range s.checkTables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
