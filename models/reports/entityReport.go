package reports

import (
	"bytes"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/dq_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetIssues      = "Issues"
	SheetSuggestions = "Suggestions"
	SheetSummary     = "Summary"
)

// EntityReport is everything exported for one entity.
type EntityReport struct {
	EntityID    int64
	Issues      []models.DqCheck
	Suggestions []models.DqSuggestion
	Summary     []models.IssueCount
}

func writeRow(f *excelize.File, sheet string, rowNo int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// BuildEntityWorkbook renders the report as an xlsx document.
func BuildEntityWorkbook(r EntityReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetIssues); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSuggestions); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, err
	}

	// Issues
	if err := writeRow(f, SheetIssues, 1, "Table", "Column", "Check", "Details", "Severity", "SK_ID_CURR", "SK_ID_PREV", "SK_ID_BUREAU", "Timestamp"); err != nil {
		return nil, err
	}
	for i, c := range r.Issues {
		obs := c.Observation()
		if err := writeRow(f, SheetIssues, i+2,
			c.SourceTable, c.ColumnName, c.CheckType, obs.DetailText(), c.Severity,
			c.SkIdCurr, optionalID(c.SkIdPrev), optionalID(c.SkIdBureau),
			c.Timestamp.Format("2006-01-02 15:04:05"),
		); err != nil {
			return nil, err
		}
	}

	// Suggestions
	if err := writeRow(f, SheetSuggestions, 1, "Dimension", "Severity", "Rule Severity", "Confidence", "Business Fix", "Why", "Root Cause", "Lineage", "Follow-up Checks", "Abstained"); err != nil {
		return nil, err
	}
	for i, s := range r.Suggestions {
		card := s.Card()
		if err := writeRow(f, SheetSuggestions, i+2,
			card.Dimension, card.Severity, card.RuleSeverity, card.Confidence,
			card.BusinessFix, card.Why, card.RootCause,
			strings.Join(card.Lineage, "\n"), strings.Join(card.FollowUps, "\n"),
			s.Abstained,
		); err != nil {
			return nil, err
		}
	}

	// Summary
	if err := writeRow(f, SheetSummary, 1, "SK_ID_CURR", r.EntityID); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetSummary, 3, "Table", "Check", "Severity", "Count"); err != nil {
		return nil, err
	}
	for i, c := range r.Summary {
		if err := writeRow(f, SheetSummary, i+4, c.SourceTable, c.CheckType, c.Severity, c.Total); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalID(id *int64) interface{} {
	if id == nil {
		return ""
	}
	return *id
}
