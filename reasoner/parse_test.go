package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelOutputAbstains(t *testing.T) {
	cases := map[string]string{
		"plain prose":          "I could not find anything wrong with this customer.",
		"empty":                "",
		"fenced broken object": "```json\n{\"dq_dimension\": \"Validity\", \"suggestion\": \"fix\",}\n```",
		"list of scalars":      "[1, \"two\"]",
		"unterminated":         `{"suggestion": "half`,
		"empty list":           "[]",
		"scalar":               "```\n42\n```",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseModelOutput(text)
			require.Error(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, AbstainSuggestion, got[0].Suggestion)
			assert.Equal(t, 0.0, got[0].Confidence)
			assert.Equal(t, "Unknown", got[0].DQDimension)
			assert.Equal(t, AbstainRationale, got[0].Rationale)
			assert.NotNil(t, got[0].LineageHypothesis)
			assert.NotNil(t, got[0].FollowUpChecks)
			assert.True(t, got[0].IsAbstain())
		})
	}
}

func TestParseModelOutputFencedObject(t *testing.T) {
	text := "Here you go:\n```json\n{\n  \"dq_dimension\": \"Completeness\",\n  \"suggestion\": \"Backfill AMT_ANNUITY from the source system\",\n  \"severity\": \"HIGH\",\n  \"confidence\": 0.82,\n  \"rationale\": \"40% of previous applications lack an annuity\",\n  \"lineage_hypothesis\": [{\"from_table\": \"SAMPLE_PREVIOUS_APP\", \"to_table\": \"SAMPLE_INSTALLMENTS\", \"key\": \"SK_ID_PREV\", \"reason\": \"annuity drives instalment amount\"}],\n  \"follow_up_checks\": [\"compare AMT_ANNUITY with AMT_INSTALMENT\"]\n}\n```\nLet me know if you need more."
	got, err := ParseModelOutput(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "Completeness", s.DQDimension)
	assert.Equal(t, "high", s.Severity)
	assert.InDelta(t, 0.82, s.Confidence, 1e-9)
	require.Len(t, s.LineageHypothesis, 1)
	assert.Equal(t, "SK_ID_PREV", s.LineageHypothesis[0].Key)
	assert.Equal(t, []string{"compare AMT_ANNUITY with AMT_INSTALMENT"}, s.FollowUpChecks)
	assert.False(t, s.IsAbstain())
}

func TestParseModelOutputList(t *testing.T) {
	text := `[{"dq_dimension":"Validity","suggestion":"Reject negative credit","confidence":1.7},
	          {"dq_dimension":"Completeness","suggestion":"Backfill","confidence":-0.2},
	          {"dq_dimension":"Uniqueness","suggestion":"Dedupe","confidence":"0.55"}]`
	got, err := ParseModelOutput(text)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, 0.0, got[1].Confidence)
	assert.InDelta(t, 0.55, got[2].Confidence, 1e-9)
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestParseModelOutputLenientFields(t *testing.T) {
	text := `{"dq_dimension":"Consistency","suggestion":"x","lineage_hypothesis":{"from_table":"A","to_table":"B","key":"K","reason":"r"},"follow_up_checks":"check one"}`
	got, err := ParseModelOutput(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].LineageHypothesis, 1)
	assert.Equal(t, []string{"check one"}, got[0].FollowUpChecks)
}

func TestParseModelOutputKeepsSparseObject(t *testing.T) {
	got, err := ParseModelOutput(`{"severity":"high","confidence":0.9}`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "high", got[0].Severity)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	assert.Equal(t, "Unknown", got[0].DQDimension)
	assert.NotNil(t, got[0].LineageHypothesis)
	assert.NotNil(t, got[0].FollowUpChecks)
	assert.False(t, got[0].IsAbstain())

	got, err = ParseModelOutput("```json\n{}\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "low", got[0].Severity)
	assert.Equal(t, 0.0, got[0].Confidence)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around", `Result: {"a":1} done`, `{"a":1}`},
		{"brackets inside strings", `{"a":"} not the end {"}`, `{"a":"} not the end {"}`},
		{"escaped quote", `{"a":"say \"}\" please"}`, `{"a":"say \"}\" please"}`},
		{"stray bracket first", `[note] {"a":[1,2]}`, `{"a":[1,2]}`},
		{"list", "```\n[{\"a\":1}]\n```", `[{"a":1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ExtractJSON("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-3))
	assert.Equal(t, 1.0, ClampConfidence(3))
	assert.Equal(t, 0.25, ClampConfidence(0.25))
}
