package gemini

import (
	"fmt"
	"strings"
)

func buildAnalysisPrompt(filename string) string {
	var b strings.Builder
	b.WriteString("You are a tax document analyst. Examine the attached document")
	if filename != "" {
		fmt.Fprintf(&b, " (filename: %s)", filename)
	}
	b.WriteString(" and respond with a single JSON object, nothing else, with these keys:\n")
	b.WriteString(`{
  "form_type": "detected form identifier such as W-2, 1099-NEC, 1040, or unknown",
  "confidence": 0.0,
  "extracted_fields": {"field name": "value"},
  "detected_issues": [
    {"type": "missing_field|format|legibility", "severity": "info|warning|error",
     "field": "field name", "description": "what is wrong", "suggestion": "how to fix it"}
  ],
  "simplified_summary": "two or three plain-language sentences about this document",
  "completeness_score": 0.0,
  "risk_level": "low|medium|high"
}`)
	b.WriteString("\nUse empty collections rather than omitting keys. Scores are between 0 and 1.")
	return b.String()
}
