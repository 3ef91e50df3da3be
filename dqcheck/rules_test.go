package dqcheck

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) Value { return Number(decimal.RequireFromString(s)) }

func mustSpec(t *testing.T, name string) TableSpec {
	t.Helper()
	spec, err := DefaultRegistry().Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return spec
}

func kinds(obs []Observation) map[IssueKind]int {
	out := map[IssueKind]int{}
	for _, o := range obs {
		out[o.Kind]++
	}
	return out
}

func TestEvaluateNullCompleteness(t *testing.T) {
	spec := mustSpec(t, TableApplication)
	row := Cells{
		{Column: ColCurr, Value: Int(100001)},
		{Column: "CODE_GENDER", Value: Null()},
		{Column: "AMT_CREDIT", Value: Null()},
		{Column: "AMT_ANNUITY", Value: dec("2500.50")},
		{Column: "OCCUPATION_TYPE", Value: Null()},
	}
	obs, err := Evaluate(spec, row)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	nulls := map[string]int{}
	for _, o := range obs {
		if o.Kind != NullValue {
			continue
		}
		nulls[o.Column]++
		if o.Key.Curr != 100001 || o.Key.Prev != nil || o.Key.Bureau != nil {
			t.Fatalf("unexpected key %+v", o.Key)
		}
		if !o.Detail.Value.IsNull() {
			t.Fatalf("null observation should carry no value, got %s", o.Detail.Value)
		}
	}
	for _, col := range []string{"CODE_GENDER", "AMT_CREDIT", "OCCUPATION_TYPE"} {
		if nulls[col] != 1 {
			t.Fatalf("column %s: want exactly one NULL_VALUE, got %d", col, nulls[col])
		}
	}
	if len(nulls) != 3 {
		t.Fatalf("want nulls on 3 columns, got %v", nulls)
	}
}

func TestEvaluateNegativeCoverage(t *testing.T) {
	for _, spec := range DefaultSpecs() {
		for _, col := range spec.NonNegative {
			t.Run(spec.Name+"/"+col, func(t *testing.T) {
				row := Cells{
					{Column: ColCurr, Value: Int(7)},
					{Column: ColPrev, Value: Int(8)},
					{Column: ColBureau, Value: Int(9)},
					{Column: col, Value: dec("-1")},
				}
				obs, err := Evaluate(spec, row)
				if err != nil {
					t.Fatalf("evaluate: %v", err)
				}
				var hits int
				for _, o := range obs {
					if o.Kind == NegativeValue && o.Column == col {
						hits++
						if o.Severity != SeverityHigh {
							t.Fatalf("negative value severity = %s", o.Severity)
						}
						if o.Detail.Value.String() != "-1" {
							t.Fatalf("detail = %s", o.Detail.Value)
						}
					}
				}
				if hits != 1 {
					t.Fatalf("want one NEGATIVE_VALUE, got %d", hits)
				}
			})
		}
	}
}

func TestEvaluateNegativeOnlyOnAllowList(t *testing.T) {
	spec := mustSpec(t, TableApplication)
	row := Cells{
		{Column: ColCurr, Value: Int(1)},
		{Column: "DAYS_REGISTRATION", Value: dec("-400")},
	}
	obs, err := Evaluate(spec, row)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected no observations, got %+v", obs)
	}
}

func TestEvaluateDayDirection(t *testing.T) {
	spec := mustSpec(t, TableApplication)
	row := Cells{
		{Column: ColCurr, Value: Int(1)},
		{Column: "DAYS_BIRTH", Value: Int(12000)},
		{Column: "DAYS_EMPLOYED", Value: Int(365243)},
	}
	obs, err := Evaluate(spec, row)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got := kinds(obs)
	if got[InvalidAgeDirection] != 1 || got[InvalidEmploymentDays] != 1 {
		t.Fatalf("unexpected kinds %v", got)
	}
	for _, o := range obs {
		if o.Severity != SeverityLow {
			t.Fatalf("%s severity = %s, want Low", o.Kind, o.Severity)
		}
	}

	row[1].Value = Int(-12000)
	row[2].Value = Int(-30)
	obs, _ = Evaluate(spec, row)
	if len(obs) != 0 {
		t.Fatalf("negative day offsets are valid, got %+v", obs)
	}
}

func TestEvaluateDomain(t *testing.T) {
	spec := mustSpec(t, TableApplication)
	cases := []struct {
		gender string
		want   int
	}{
		{"M", 0},
		{"F", 0},
		{"XNA", 1},
		{"m", 1},
	}
	for _, tc := range cases {
		row := Cells{
			{Column: ColCurr, Value: Int(1)},
			{Column: "CODE_GENDER", Value: Text(tc.gender)},
		}
		obs, err := Evaluate(spec, row)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got := kinds(obs)[InvalidRange]; got != tc.want {
			t.Fatalf("gender %q: want %d INVALID_RANGE, got %d", tc.gender, tc.want, got)
		}
	}
}

func TestEvaluatePayment(t *testing.T) {
	spec := mustSpec(t, TableInstallments)
	cases := []struct {
		name string
		paid Value
		due  Value
		want IssueKind
	}{
		{"overpaid", dec("151"), dec("100"), PotentialOverpayment},
		{"exactly 1.5x", dec("150"), dec("100"), ""},
		{"underpaid", dec("49.99"), dec("100"), PotentialUnderpayment},
		{"exactly half", dec("50"), dec("100"), ""},
		{"normal", dec("100"), dec("100"), ""},
		{"paid missing", Null(), dec("100"), ""},
		{"due missing", dec("100"), Null(), ""},
		{"non numeric", Text("n/a"), dec("100"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := Cells{
				{Column: ColPrev, Value: Int(2)},
				{Column: ColCurr, Value: Int(1)},
				{Column: "NUM_INSTALMENT_NUMBER", Value: Int(1)},
				{Column: "AMT_INSTALMENT", Value: tc.due},
				{Column: "AMT_PAYMENT", Value: tc.paid},
			}
			obs, err := Evaluate(spec, row)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			var found []Observation
			for _, o := range obs {
				if o.Kind == PotentialOverpayment || o.Kind == PotentialUnderpayment {
					found = append(found, o)
				}
			}
			if tc.want == "" {
				if len(found) != 0 {
					t.Fatalf("unexpected payment issue %+v", found)
				}
				return
			}
			if len(found) != 1 || found[0].Kind != tc.want {
				t.Fatalf("want %s, got %+v", tc.want, found)
			}
			if found[0].Severity != SeverityMedium {
				t.Fatalf("severity = %s", found[0].Severity)
			}
			if found[0].Detail.Value.String() != tc.paid.String() {
				t.Fatalf("detail should carry the paid amount, got %s", found[0].Detail.Value)
			}
			if found[0].Key.Prev == nil || *found[0].Key.Prev != 2 {
				t.Fatalf("missing prev key: %+v", found[0].Key)
			}
		})
	}
}

func TestEvaluatePaymentNegativeDueTripsBoth(t *testing.T) {
	spec := mustSpec(t, TableInstallments)
	row := Cells{
		{Column: ColPrev, Value: Int(2)},
		{Column: ColCurr, Value: Int(1)},
		{Column: "NUM_INSTALMENT_NUMBER", Value: Int(1)},
		{Column: "AMT_INSTALMENT", Value: dec("-10")},
		{Column: "AMT_PAYMENT", Value: dec("-10")},
	}
	obs, err := Evaluate(spec, row)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	kinds := map[IssueKind]int{}
	for _, o := range obs {
		kinds[o.Kind]++
	}
	if kinds[PotentialOverpayment] != 1 || kinds[PotentialUnderpayment] != 1 {
		t.Fatalf("want one of each payment kind, got %v", kinds)
	}
}

func TestEvaluateRejectsMissingKey(t *testing.T) {
	spec := mustSpec(t, TablePreviousApplication)
	cases := []Cells{
		{{Column: ColPrev, Value: Int(5)}, {Column: "AMT_CREDIT", Value: dec("-1")}},
		{{Column: ColCurr, Value: Int(1)}, {Column: ColPrev, Value: Null()}},
		{{Column: ColCurr, Value: Text("abc")}, {Column: ColPrev, Value: Int(5)}},
	}
	for i, row := range cases {
		obs, err := Evaluate(spec, row)
		if !errors.Is(err, ErrMissingEntityKey) {
			t.Fatalf("case %d: want ErrMissingEntityKey, got %v", i, err)
		}
		if len(obs) != 0 {
			t.Fatalf("case %d: rejected row must not yield observations", i)
		}
	}
}

func TestObservationSummary(t *testing.T) {
	pct := 0.4
	agg := Observation{
		Kind:     MissingAggregate,
		Severity: SeverityHigh,
		Detail:   Detail{MissingPct: &pct, NullRows: 2, TotalRows: 5},
	}
	if got, want := agg.Summary(), "High severity MISSING_AGGREGATE issue: 40.0% missing (2 of 5 rows)"; got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
	neg := Observation{Kind: NegativeValue, Severity: SeverityHigh, Detail: Detail{Value: dec("-500")}}
	if got, want := neg.Summary(), "High severity NEGATIVE_VALUE issue: -500"; got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}
