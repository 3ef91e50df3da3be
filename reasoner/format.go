package reasoner

import (
	"fmt"
	"strings"
)

// Card is the business-facing rendering of a suggestion.
type Card struct {
	Dimension    string   `json:"dimension"`
	Severity     string   `json:"severity"`
	RuleSeverity string   `json:"rule_severity,omitempty"`
	Confidence   string   `json:"confidence"`
	BusinessFix  string   `json:"business_fix"`
	Why          string   `json:"why"`
	RootCause    string   `json:"root_cause"`
	Lineage      []string `json:"lineage"`
	FollowUps    []string `json:"follow_up_checks"`
}

func Format(s Suggestion) Card {
	card := Card{
		Dimension:   orDefault(s.DQDimension, "Unknown"),
		Severity:    SeverityTag(s.Severity),
		Confidence:  fmt.Sprintf("%.1f%%", ClampConfidence(s.Confidence)*100),
		BusinessFix: orDefault(s.Suggestion, "No fix provided"),
		Why:         orDefault(s.Rationale, "No reasoning provided"),
		RootCause:   "Not available",
		Lineage:     make([]string, 0, len(s.LineageHypothesis)),
		FollowUps:   s.FollowUpChecks,
	}
	if s.RootCauseHypothesis != nil && strings.TrimSpace(*s.RootCauseHypothesis) != "" {
		card.RootCause = *s.RootCauseHypothesis
	}
	for _, l := range s.LineageHypothesis {
		card.Lineage = append(card.Lineage, fmt.Sprintf("%s ➝ %s (%s)", l.FromTable, l.ToTable, l.Reason))
	}
	if card.FollowUps == nil {
		card.FollowUps = []string{}
	}
	return card
}

// SeverityTag renders a severity with its traffic-light marker. Unknown
// values are only capitalised.
func SeverityTag(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	switch s {
	case "high":
		return "🔴 High"
	case "medium":
		return "🟡 Medium"
	case "low":
		return "🟢 Low"
	case "":
		return "Unknown"
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
