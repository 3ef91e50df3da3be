package reasoner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoJSON        = errors.New("no JSON value in model output")
	ErrNoSuggestions = errors.New("model output holds no usable suggestion")
)

// ParseModelOutput extracts suggestions from free-form model text. It never
// returns an empty slice: on failure the slice holds one abstain record and
// err explains why.
func ParseModelOutput(text string) ([]Suggestion, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return []Suggestion{Abstain()}, err
	}
	out, err := decodeSuggestions([]byte(payload))
	if err != nil {
		return []Suggestion{Abstain()}, err
	}
	return out, nil
}

// ExtractJSON strips markdown fences and returns the first balanced JSON
// object or array found in text.
func ExtractJSON(text string) (string, error) {
	s := stripFences(text)
	var first string
	for start := 0; start < len(s); {
		i := strings.IndexAny(s[start:], "{[")
		if i < 0 {
			break
		}
		i += start
		end := matchBracket(s, i)
		if end < 0 {
			if first == "" {
				first = s[i:]
			}
			start = i + 1
			continue
		}
		candidate := s[i : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		if first == "" {
			first = candidate
		}
		start = i + 1
	}
	if first != "" {
		return first, nil
	}
	return "", ErrNoJSON
}

func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// matchBracket returns the index of the bracket closing the one at start,
// ignoring brackets inside string literals, or -1.
func matchBracket(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeSuggestions(data []byte) ([]Suggestion, error) {
	data = bytes.TrimSpace(data)
	var items []json.RawMessage
	switch {
	case len(data) == 0 || string(data) == "null":
		return nil, ErrNoSuggestions
	case data[0] == '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode suggestion list: %w", err)
		}
	case data[0] == '{':
		items = []json.RawMessage{data}
	default:
		return nil, fmt.Errorf("unexpected JSON value: %w", ErrNoSuggestions)
	}

	out := make([]Suggestion, 0, len(items))
	for _, item := range items {
		s, ok := decodeSuggestion(item)
		if ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSuggestions
	}
	return out, nil
}

type looseSuggestion struct {
	DQDimension         string          `json:"dq_dimension"`
	Suggestion          string          `json:"suggestion"`
	RuleTemplateSQL     *string         `json:"rule_template_sql"`
	Severity            string          `json:"severity"`
	Confidence          json.RawMessage `json:"confidence"`
	Rationale           string          `json:"rationale"`
	AnomalySignature    *string         `json:"anomaly_signature"`
	RootCauseHypothesis *string         `json:"root_cause_hypothesis"`
	LineageHypothesis   json.RawMessage `json:"lineage_hypothesis"`
	FollowUpChecks      json.RawMessage `json:"follow_up_checks"`
}

// decodeSuggestion accepts any JSON object. Missing fields take the
// defaults of the abstain record, except suggestion and confidence.
func decodeSuggestion(raw json.RawMessage) (Suggestion, bool) {
	var l looseSuggestion
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Suggestion{}, false
	}
	if err := json.Unmarshal(raw, &l); err != nil {
		return Suggestion{}, false
	}
	dimension := strings.TrimSpace(l.DQDimension)
	if dimension == "" {
		dimension = "Unknown"
	}
	severity := strings.ToLower(strings.TrimSpace(l.Severity))
	if severity == "" {
		severity = "low"
	}
	return Suggestion{
		DQDimension:         dimension,
		Suggestion:          l.Suggestion,
		RuleTemplateSQL:     l.RuleTemplateSQL,
		Severity:            severity,
		Confidence:          parseConfidence(l.Confidence),
		Rationale:           l.Rationale,
		AnomalySignature:    l.AnomalySignature,
		RootCauseHypothesis: l.RootCauseHypothesis,
		LineageHypothesis:   parseLineage(l.LineageHypothesis),
		FollowUpChecks:      parseFollowUps(l.FollowUpChecks),
	}, true
}

// parseConfidence accepts a number or a numeric string and clamps the
// result to [0,1].
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		f = v
	}
	return ClampConfidence(f)
}

func ClampConfidence(f float64) float64 {
	switch {
	case f != f, f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func parseLineage(raw json.RawMessage) []LineageLink {
	links := []LineageLink{}
	if len(raw) == 0 {
		return links
	}
	if json.Unmarshal(raw, &links) == nil {
		if links == nil {
			return []LineageLink{}
		}
		return links
	}
	var one LineageLink
	if json.Unmarshal(raw, &one) == nil {
		return []LineageLink{one}
	}
	return []LineageLink{}
}

func parseFollowUps(raw json.RawMessage) []string {
	checks := []string{}
	if len(raw) == 0 {
		return checks
	}
	if json.Unmarshal(raw, &checks) == nil {
		if checks == nil {
			return []string{}
		}
		return checks
	}
	var one string
	if json.Unmarshal(raw, &one) == nil && one != "" {
		return []string{one}
	}
	return []string{}
}
