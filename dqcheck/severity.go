package dqcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

const (
	highMissingPct   = 0.3
	mediumMissingPct = 0.1
)

// Classify maps an issue to its tier. It is total: any kind, including
// unknown ones, gets a tier. The value argument is accepted for rules that
// grade by magnitude; none of the current kinds do.
func Classify(kind IssueKind, pct *float64, value *decimal.Decimal) Severity {
	switch kind {
	case NullValue, MissingAggregate:
		if pct == nil {
			return SeverityLow
		}
		switch {
		case *pct > highMissingPct:
			return SeverityHigh
		case *pct > mediumMissingPct:
			return SeverityMedium
		}
		return SeverityLow
	case NegativeValue, DuplicateKey:
		return SeverityHigh
	case PotentialOverpayment, PotentialUnderpayment:
		return SeverityMedium
	}
	return SeverityLow
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	}
	return "Unknown"
}

// Max returns the higher of two tiers.
func (s Severity) Max(o Severity) Severity {
	if o > s {
		return o
	}
	return s
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
