package dqcheck

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TableApplication         = "SAMPLE_APPLICATION"
	TableBureau              = "SAMPLE_BUREAU"
	TablePreviousApplication = "SAMPLE_PREVIOUS_APP"
	TableInstallments        = "SAMPLE_INSTALLMENTS"

	ColCurr   = "SK_ID_CURR"
	ColPrev   = "SK_ID_PREV"
	ColBureau = "SK_ID_BUREAU"
)

// KeyColumns names the columns holding the entity key. Curr is mandatory;
// Prev and Bureau are set only for tables that carry them.
type KeyColumns struct {
	Curr   string
	Prev   string
	Bureau string
}

func (k KeyColumns) names() []string {
	out := []string{}
	for _, c := range []string{k.Curr, k.Prev, k.Bureau} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// DayRule flags a day-offset column whose value is positive.
type DayRule struct {
	Column string
	Kind   IssueKind
}

// DomainRule restricts a categorical column to a closed set.
type DomainRule struct {
	Column  string
	Allowed []string
}

// PaymentRule compares a paid amount against the amount due.
type PaymentRule struct {
	PaidColumn string
	DueColumn  string
	Over       decimal.Decimal
	Under      decimal.Decimal
}

// TableSpec declares everything the engine needs to know about a monitored
// table. Columns lists what the loaded rows carry; when set, every rule
// must name one of them.
type TableSpec struct {
	Name         string
	CheckTable   string
	Columns      []string
	Keys         KeyColumns
	DuplicateKey []string
	NonNegative  []string
	DayRules     []DayRule
	Domains      []DomainRule
	Payment      *PaymentRule
}

func (s TableSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.CheckTable) == "" {
		return fmt.Errorf("table spec %q: name and check table are required", s.Name)
	}
	if s.Keys.Curr == "" || len(s.DuplicateKey) == 0 {
		return fmt.Errorf("table %s: %w", s.Name, ErrMissingKeyColumns)
	}
	if p := s.Payment; p != nil {
		if p.PaidColumn == "" || p.DueColumn == "" || !p.Over.IsPositive() || !p.Under.IsPositive() {
			return fmt.Errorf("table %s: %w", s.Name, ErrInvalidPaymentRule)
		}
	}
	if len(s.Columns) == 0 {
		return nil
	}
	known := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		known[c] = true
	}
	for _, c := range s.ruleColumns() {
		if !known[c] {
			return fmt.Errorf("table %s: %s: %w", s.Name, c, ErrUnknownColumn)
		}
	}
	return nil
}

func (s TableSpec) ruleColumns() []string {
	cols := append(s.Keys.names(), s.DuplicateKey...)
	cols = append(cols, s.NonNegative...)
	for _, r := range s.DayRules {
		cols = append(cols, r.Column)
	}
	for _, r := range s.Domains {
		cols = append(cols, r.Column)
	}
	if p := s.Payment; p != nil {
		cols = append(cols, p.PaidColumn, p.DueColumn)
	}
	return cols
}

// IsKeyColumn reports whether column is one of the entity key columns.
func (s TableSpec) IsKeyColumn(column string) bool {
	for _, c := range s.Keys.names() {
		if c == column {
			return true
		}
	}
	return false
}

// KeyOf resolves the entity key of a row. Every declared key column must be
// present and numeric.
func (s TableSpec) KeyOf(row Row) (EntityKey, error) {
	return s.keyOf(indexCells(row))
}

func (s TableSpec) keyOf(idx map[string]Value) (EntityKey, error) {
	var key EntityKey
	curr, err := keyValue(idx, s.Keys.Curr)
	if err != nil {
		return key, err
	}
	key.Curr = curr
	if s.Keys.Prev != "" {
		prev, err := keyValue(idx, s.Keys.Prev)
		if err != nil {
			return key, err
		}
		key.Prev = &prev
	}
	if s.Keys.Bureau != "" {
		bureau, err := keyValue(idx, s.Keys.Bureau)
		if err != nil {
			return key, err
		}
		key.Bureau = &bureau
	}
	return key, nil
}

func keyValue(idx map[string]Value, column string) (int64, error) {
	d, ok := idx[column].Decimal()
	if !ok || !d.IsInteger() {
		return 0, fmt.Errorf("%s: %w", column, ErrMissingEntityKey)
	}
	return d.IntPart(), nil
}

// Registry is the ordered set of monitored tables.
type Registry struct {
	specs  []TableSpec
	byName map[string]int
}

func NewRegistry(specs ...TableSpec) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("table %s registered twice", s.Name)
		}
		r.byName[s.Name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (TableSpec, error) {
	i, ok := r.byName[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("%s: %w", name, ErrUnknownTable)
	}
	return r.specs[i], nil
}

// Tables returns the specs in registration order.
func (r *Registry) Tables() []TableSpec {
	out := make([]TableSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// CheckTables returns the check store names in registration order.
func (r *Registry) CheckTables() []string {
	out := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.CheckTable)
	}
	return out
}

// DefaultSpecs returns the built-in rule packs for the four loan tables.
func DefaultSpecs() []TableSpec {
	return []TableSpec{
		{
			Name:         TableApplication,
			CheckTable:   "APP_CHECKS",
			Columns: []string{
				ColCurr, "TARGET", "NAME_CONTRACT_TYPE", "CODE_GENDER", "FLAG_OWN_CAR", "FLAG_OWN_REALTY",
				"CNT_CHILDREN", "AMT_INCOME_TOTAL", "AMT_CREDIT", "AMT_ANNUITY", "DAYS_BIRTH", "DAYS_EMPLOYED",
				"OCCUPATION_TYPE", "ORGANIZATION_TYPE", "FLAG_WORK_PHONE", "FLAG_PHONE", "FLAG_EMAIL",
			},
			Keys:         KeyColumns{Curr: ColCurr},
			DuplicateKey: []string{ColCurr},
			NonNegative:  []string{"CNT_CHILDREN", "AMT_INCOME_TOTAL", "AMT_CREDIT", "AMT_ANNUITY"},
			DayRules: []DayRule{
				{Column: "DAYS_BIRTH", Kind: InvalidAgeDirection},
				{Column: "DAYS_EMPLOYED", Kind: InvalidEmploymentDays},
			},
			Domains: []DomainRule{
				{Column: "CODE_GENDER", Allowed: []string{"M", "F"}},
				{Column: "NAME_CONTRACT_TYPE", Allowed: []string{"Cash loans", "Revolving loans"}},
			},
		},
		{
			Name:         TableBureau,
			CheckTable:   "BUREAU_CHECKS",
			Columns: []string{
				ColCurr, ColBureau, "CREDIT_ACTIVE", "CREDIT_CURRENCY", "CREDIT_TYPE", "DAYS_CREDIT",
				"CREDIT_DAY_OVERDUE", "DAYS_CREDIT_ENDDATE", "DAYS_ENDDATE_FACT", "AMT_CREDIT_MAX_OVERDUE",
				"CNT_CREDIT_PROLONG", "AMT_CREDIT_SUM", "AMT_CREDIT_SUM_DEBT", "AMT_CREDIT_SUM_LIMIT",
				"AMT_CREDIT_SUM_OVERDUE", "DAYS_CREDIT_UPDATE", "AMT_ANNUITY",
			},
			Keys:         KeyColumns{Curr: ColCurr, Bureau: ColBureau},
			DuplicateKey: []string{ColCurr, ColBureau},
			NonNegative: []string{
				"AMT_CREDIT_MAX_OVERDUE", "AMT_CREDIT_SUM", "AMT_CREDIT_SUM_DEBT",
				"AMT_CREDIT_SUM_LIMIT", "AMT_CREDIT_SUM_OVERDUE", "AMT_ANNUITY",
			},
			Domains: []DomainRule{
				{Column: "CREDIT_ACTIVE", Allowed: []string{"Active", "Bad debt", "Closed", "Sold"}},
			},
		},
		{
			Name:         TablePreviousApplication,
			CheckTable:   "PREV_APP_CHECKS",
			Columns: []string{
				ColPrev, ColCurr, "NAME_CONTRACT_TYPE", "AMT_ANNUITY", "AMT_APPLICATION", "AMT_CREDIT",
				"AMT_DOWN_PAYMENT", "AMT_GOODS_PRICE", "CNT_PAYMENT", "NAME_CONTRACT_STATUS", "NAME_PORTFOLIO",
				"CHANNEL_TYPE", "PRODUCT_COMBINATION", "DAYS_DECISION", "DAYS_FIRST_DRAWING", "DAYS_FIRST_DUE",
				"DAYS_LAST_DUE", "DAYS_TERMINATION",
			},
			Keys:         KeyColumns{Curr: ColCurr, Prev: ColPrev},
			DuplicateKey: []string{ColCurr, ColPrev},
			NonNegative:  []string{"AMT_ANNUITY", "AMT_APPLICATION", "AMT_CREDIT", "AMT_DOWN_PAYMENT", "AMT_GOODS_PRICE"},
		},
		{
			Name:         TableInstallments,
			CheckTable:   "INST_CHECKS",
			Columns: []string{
				ColPrev, ColCurr, "NUM_INSTALMENT_NUMBER", "DAYS_INSTALMENT", "DAYS_ENTRY_PAYMENT",
				"AMT_INSTALMENT", "AMT_PAYMENT",
			},
			Keys:         KeyColumns{Curr: ColCurr, Prev: ColPrev},
			DuplicateKey: []string{ColCurr, ColPrev},
			Payment: &PaymentRule{
				PaidColumn: "AMT_PAYMENT",
				DueColumn:  "AMT_INSTALMENT",
				Over:       decimal.RequireFromString("1.5"),
				Under:      decimal.RequireFromString("0.5"),
			},
		},
	}
}

func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return r
}
