package dqcheck

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindNumber
	kindText
)

// Value is one cell of a source row. The zero Value is null.
type Value struct {
	kind valueKind
	num  decimal.Decimal
	text string
}

func Null() Value { return Value{} }

func Number(d decimal.Decimal) Value { return Value{kind: kindNumber, num: d} }

func Int(i int64) Value { return Value{kind: kindNumber, num: decimal.NewFromInt(i)} }

func Text(s string) Value { return Value{kind: kindText, text: s} }

func NullableDecimal(d decimal.NullDecimal) Value {
	if !d.Valid {
		return Null()
	}
	return Number(d.Decimal)
}

func NullableInt(p *int64) Value {
	if p == nil {
		return Null()
	}
	return Int(*p)
}

func NullableText(p *string) Value {
	if p == nil {
		return Null()
	}
	return Text(*p)
}

func (v Value) IsNull() bool { return v.kind == kindNull }

// Decimal returns the numeric content. Text cells holding a number are
// accepted so that loosely typed columns still get numeric checks.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindText:
		d, err := decimal.NewFromString(v.text)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}

func (v Value) Text() (string, bool) {
	if v.kind != kindText {
		return "", false
	}
	return v.text, true
}

func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return v.num.String()
	case kindText:
		return v.text
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return []byte(v.num.String()), nil
	case kindText:
		return []byte(strconv.Quote(v.text)), nil
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	*v = Number(d)
	return nil
}

// Cell is a named column value of a row.
type Cell struct {
	Column string
	Value  Value
}

// Row is a source record as seen by the rule packs. Cells must list every
// column of the record, key columns included, in a stable order.
type Row interface {
	Cells() []Cell
}

// Cells is a ready-made Row backed by a slice.
type Cells []Cell

func (c Cells) Cells() []Cell { return c }

func indexCells(row Row) map[string]Value {
	cells := row.Cells()
	idx := make(map[string]Value, len(cells))
	for _, c := range cells {
		idx[c.Column] = c.Value
	}
	return idx
}
