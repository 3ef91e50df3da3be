package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

func int64Ptr(v int64) *int64 { return &v }

func TestInstallmentCellsMapNulls(t *testing.T) {
	row := Installment{
		SkIdPrev:      int64Ptr(7),
		SkIdCurr:      int64Ptr(100002),
		AmtInstalment: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	}
	idx := map[string]dqcheck.Value{}
	for _, c := range row.Cells() {
		idx[c.Column] = c.Value
	}
	if len(idx) != 7 {
		t.Fatalf("expected 7 columns, got %d", len(idx))
	}
	if !idx["AMT_PAYMENT"].IsNull() || !idx["NUM_INSTALMENT_NUMBER"].IsNull() {
		t.Fatalf("unset columns must map to null")
	}
	if d, ok := idx["AMT_INSTALMENT"].Decimal(); !ok || !d.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("AMT_INSTALMENT = %v", idx["AMT_INSTALMENT"])
	}

	spec, _ := dqcheck.DefaultRegistry().Lookup(dqcheck.TableInstallments)
	key, err := spec.KeyOf(row)
	if err != nil {
		t.Fatalf("KeyOf: %v", err)
	}
	if key.Curr != 100002 || key.Prev == nil || *key.Prev != 7 || key.Bureau != nil {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestSourceRowsCarryRegisteredColumns(t *testing.T) {
	rows := map[string]dqcheck.Row{
		dqcheck.TableApplication:         Application{},
		dqcheck.TableBureau:              Bureau{},
		dqcheck.TablePreviousApplication: PreviousApplication{},
		dqcheck.TableInstallments:        Installment{},
	}
	reg := dqcheck.DefaultRegistry()
	for table, row := range rows {
		spec, err := reg.Lookup(table)
		if err != nil {
			t.Fatalf("Lookup %s: %v", table, err)
		}
		var got []string
		for _, c := range row.Cells() {
			got = append(got, c.Column)
		}
		if fmt.Sprint(got) != fmt.Sprint(spec.Columns) {
			t.Fatalf("%s: row columns %v, registered %v", table, got, spec.Columns)
		}
	}
}

func TestDqCheckRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	obs := dqcheck.Observation{
		Table:     dqcheck.TablePreviousApplication,
		Column:    "AMT_CREDIT",
		Kind:      dqcheck.NegativeValue,
		Detail:    dqcheck.Detail{Value: dqcheck.Int(-500)},
		Key:       dqcheck.EntityKey{Curr: 100002, Prev: int64Ptr(9)},
		Severity:  dqcheck.SeverityHigh,
		CreatedAt: now,
	}
	row, err := NewDqCheck(obs)
	if err != nil {
		t.Fatalf("NewDqCheck: %v", err)
	}
	if row.SkIdBureau != nil {
		t.Fatalf("bureau key must stay NULL")
	}
	if row.Severity != "High" || row.CheckType != "NEGATIVE_VALUE" {
		t.Fatalf("unexpected row %+v", row)
	}
	if string(row.CheckDetails) != `{"value":-500}` {
		t.Fatalf("details = %s", row.CheckDetails)
	}

	back := row.Observation()
	if back.Summary() != obs.Summary() {
		t.Fatalf("summary %q != %q", back.Summary(), obs.Summary())
	}
	if back.Key.Prev == nil || *back.Key.Prev != 9 {
		t.Fatalf("prev key lost: %+v", back.Key)
	}
}

func TestSuggestionBatchRows(t *testing.T) {
	root := "upstream feed"
	batch := SuggestionBatch{
		EntityID:      100002,
		CorrelationId: "cid-1",
		Request: reasoner.Request{EntityID: 100002, Issues: []reasoner.RequestIssue{
			{Table: dqcheck.TablePreviousApplication, Column: "AMT_ANNUITY", Description: "Annuity", Summary: "High severity MISSING_AGGREGATE issue: 40.0% missing (2 of 5 rows)"},
			{Table: dqcheck.TablePreviousApplication, Column: "AMT_CREDIT", Description: "Credit", Summary: "High severity NEGATIVE_VALUE issue: -500"},
		}},
		Raw: "{}",
		Suggestions: []reasoner.Suggestion{
			{DQDimension: "Completeness", Suggestion: "Backfill", Severity: "high", Confidence: 1.7, RootCauseHypothesis: &root,
				LineageHypothesis: []reasoner.LineageLink{}, FollowUpChecks: []string{"recount"}},
			{DQDimension: "Validity", Suggestion: "Reject negatives", Severity: "medium", Confidence: 0.4,
				LineageHypothesis: []reasoner.LineageLink{}, FollowUpChecks: []string{}},
		},
		RuleSeverity: "High",
		CreatedAt:    time.Now(),
	}
	rows := batch.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.SourceTable != dqcheck.TablePreviousApplication || r.ColumnName != "AMT_ANNUITY" {
			t.Fatalf("rows must be labelled with the first issue, got %s.%s", r.SourceTable, r.ColumnName)
		}
		if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
			t.Fatalf("confidence not clamped: %v", r.ConfidenceScore)
		}
		if r.RuleSeverity != "High" || r.CorrelationId != "cid-1" {
			t.Fatalf("unexpected row %+v", r)
		}
	}

	card := rows[0].Card()
	if card.Confidence != "100.0%" {
		t.Fatalf("card confidence = %s", card.Confidence)
	}
	if card.RuleSeverity == "" || card.RootCause != root {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestDecodeFallsBackToColumns(t *testing.T) {
	row := DqSuggestion{
		DqDimension:       "Accuracy",
		Suggestion:        "Check feed",
		Severity:          "low",
		ConfidenceScore:   0.2,
		AiSuggestion:      []byte("not json"),
		FollowUpChecks:    []byte(`["a","b"]`),
		LineageHypothesis: []byte(`[]`),
	}
	s := row.Decode()
	if s.DQDimension != "Accuracy" || len(s.FollowUpChecks) != 2 {
		t.Fatalf("unexpected decode %+v", s)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyErr(fmt.Errorf("insert: %w", dup)) {
		t.Fatalf("wrapped 1062 must be recognised")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1452}) {
		t.Fatalf("1452 is not a duplicate")
	}
	if isDuplicateKeyErr(errors.New("boom")) {
		t.Fatalf("plain errors are not duplicates")
	}
}

func TestGormStoreRejectsUnknownCheckTable(t *testing.T) {
	s := NewGormStore(nil, dqcheck.DefaultRegistry(), time.Minute, nil)
	err := s.InsertIssue(context.Background(), "NOT_A_CHECK_TABLE", dqcheck.Observation{})
	if !errors.Is(err, dqcheck.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
	if err := s.TruncateChecks(context.Background(), []string{"users"}); !errors.Is(err, dqcheck.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}
