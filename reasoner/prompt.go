package reasoner

import (
	"fmt"
	"strings"
)

const responseSchema = `{
  "dq_dimension": "Completeness|Validity|Uniqueness|Consistency|Timeliness",
  "suggestion": "Short, actionable fix",
  "rule_template_sql": "Optional SQL/pseudocode",
  "severity": "low|medium|high",
  "confidence": 0.0,
  "rationale": "1-2 sentence reasoning",
  "anomaly_signature": "Condition that identifies anomaly",
  "root_cause_hypothesis": "Likely source and reason",
  "lineage_hypothesis": [
    {"from_table": "string", "to_table": "string", "key": "string", "reason": "string"}
  ],
  "follow_up_checks": ["list of recommended checks"]
}`

const promptHeader = `You are a data quality analyst for a consumer lending business.
Analyse the profiling summaries of a single customer and return structured, actionable suggestions
covering the anomaly signature, the most likely root cause and the lineage of the problem.

### DATA CONTEXT
- Dataset: Home Credit default risk (credit applications and repayment history)
- Tables and relationships:
  - SAMPLE_APPLICATION joins SAMPLE_BUREAU on SK_ID_CURR
  - SAMPLE_APPLICATION joins SAMPLE_PREVIOUS_APP on SK_ID_CURR
  - SAMPLE_PREVIOUS_APP joins SAMPLE_INSTALLMENTS on SK_ID_PREV
`

// RenderPrompt builds the model prompt for one consolidated request.
func RenderPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n### TASK\n")
	b.WriteString("Identify the anomalies below, propose fixes, state one root cause hypothesis and trace lineage where possible.\n")
	b.WriteString("The answer MUST be valid JSON following this schema:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n### CUSTOMER CONTEXT\n")
	fmt.Fprintf(&b, "- Customer ID: %d\n", req.EntityID)
	b.WriteString("- Combined summaries:\n")
	if len(req.Issues) == 0 {
		b.WriteString("  (no issues were detected)\n")
	}
	for _, is := range req.Issues {
		fmt.Fprintf(&b, "- Table: %s, Column: %s (%s)\n", is.Table, is.Column, is.Description)
		fmt.Fprintf(&b, "  Check Summary: %s\n\n", is.Summary)
	}
	b.WriteString("\n### RESPONSE\nReturn only JSON, no extra text.\n")
	return b.String()
}
