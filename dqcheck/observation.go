package dqcheck

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownTable       = errors.New("unknown table")
	ErrMissingKeyColumns  = errors.New("table spec declares no key columns")
	ErrMissingEntityKey   = errors.New("row is missing its entity key")
	ErrInvalidPaymentRule = errors.New("payment rule is incomplete")
	ErrUnknownColumn      = errors.New("column is not loaded for this table")
)

type IssueKind string

const (
	NullValue             IssueKind = "NULL_VALUE"
	NegativeValue         IssueKind = "NEGATIVE_VALUE"
	InvalidRange          IssueKind = "INVALID_RANGE"
	InvalidAgeDirection   IssueKind = "INVALID_AGE_DIRECTION"
	InvalidEmploymentDays IssueKind = "INVALID_EMPLOYMENT_DAYS"
	DuplicateKey          IssueKind = "DUPLICATE_KEY"
	PotentialOverpayment  IssueKind = "POTENTIAL_OVERPAYMENT"
	PotentialUnderpayment IssueKind = "POTENTIAL_UNDERPAYMENT"
	MissingAggregate      IssueKind = "MISSING_AGGREGATE"
)

// IssueKinds lists every kind the engine can emit.
var IssueKinds = []IssueKind{
	NullValue, NegativeValue, InvalidRange, InvalidAgeDirection, InvalidEmploymentDays,
	DuplicateKey, PotentialOverpayment, PotentialUnderpayment, MissingAggregate,
}

// EntityKey identifies the customer a row belongs to, plus the secondary
// record id when the table has one.
type EntityKey struct {
	Curr   int64  `json:"sk_id_curr"`
	Prev   *int64 `json:"sk_id_prev,omitempty"`
	Bureau *int64 `json:"sk_id_bureau,omitempty"`
}

// Detail is the kind-specific payload stored as CHECK_DETAILS.
type Detail struct {
	Value      Value    `json:"value"`
	MissingPct *float64 `json:"missing_pct,omitempty"`
	NullRows   int      `json:"null_rows,omitempty"`
	TotalRows  int      `json:"total_rows,omitempty"`
}

type Observation struct {
	Table     string    `json:"table"`
	Column    string    `json:"column"`
	Kind      IssueKind `json:"kind"`
	Detail    Detail    `json:"detail"`
	Key       EntityKey `json:"key"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailText renders the detail the way it appears in issue summaries.
func (o Observation) DetailText() string {
	if o.Kind == MissingAggregate && o.Detail.MissingPct != nil {
		pct := strconv.FormatFloat(*o.Detail.MissingPct*100, 'f', 1, 64)
		return fmt.Sprintf("%s%% missing (%d of %d rows)", pct, o.Detail.NullRows, o.Detail.TotalRows)
	}
	return o.Detail.Value.String()
}

// Summary is the one-line description sent to the reasoning service.
func (o Observation) Summary() string {
	return fmt.Sprintf("%s severity %s issue: %s", o.Severity, o.Kind, o.DetailText())
}

func newObservation(spec TableSpec, column string, kind IssueKind, value Value, key EntityKey) Observation {
	obs := Observation{
		Table:  spec.Name,
		Column: column,
		Kind:   kind,
		Detail: Detail{Value: value},
		Key:    key,
	}
	obs.Severity = obs.classify()
	return obs
}

func (o Observation) classify() Severity {
	var value *decimal.Decimal
	if d, ok := o.Detail.Value.Decimal(); ok {
		value = &d
	}
	return Classify(o.Kind, o.Detail.MissingPct, value)
}
