package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a senior clinical psychologist reviewing notes from a short voice screening interview.
Weigh reported facts (sleep, appetite, functioning, plans) over stated mood.
If the summary describes someone other than the speaker, score the speaker's own risk.
Distinguish intellectual discussion of death from intent.`

// buildPrompt renders the per-report instruction sent to the model.
func buildPrompt(report Report) string {
	var b strings.Builder
	b.WriteString("PATIENT SUMMARY:\n")
	b.WriteString(report.Summary)
	b.WriteString("\n\n")
	if report.PreliminaryScore != nil {
		fmt.Fprintf(&b, "PRELIMINARY RISK SCORE FROM THE AGENT: %.1f/10\n\n", *report.PreliminaryScore)
	}
	b.WriteString(`TASK:
1. Assign a risk score from 0 to 10.
2. Write a one-sentence clinical impression for the reviewing clinician.
3. Briefly explain the score.

OUTPUT FORMAT (strict JSON):
{"score": number, "validation": "string", "reasoning": "string"}`)
	return b.String()
}
