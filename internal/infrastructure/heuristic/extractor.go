// Package heuristic implements rule-based field and issue extraction over
// OCR text, used when the generative provider is unavailable.
package heuristic

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

var (
	reSSN      = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reEIN      = regexp.MustCompile(`\b\d{2}-\d{7}\b`)
	reCurrency = regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)
	reDate     = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b(19|20)\d{2}\b`)
)

var formKeywords = []struct {
	keyword  string
	formType string
}{
	{"w-2", "W-2"},
	{"wage and tax statement", "W-2"},
	{"1099-nec", "1099-NEC"},
	{"1099-misc", "1099-MISC"},
	{"1099-int", "1099-INT"},
	{"1099", "1099"},
	{"form 1040", "1040"},
	{"schedule c", "Schedule C"},
	{"schedule a", "Schedule A"},
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans the text for tax-shaped substrings and derives issues from
// the expected fields that are absent. Risk follows issue count: none is
// low, one or two is medium, more is high.
func (e *Extractor) Extract(text string) *domain.AnalysisResult {
	lower := strings.ToLower(text)

	fields := map[string]string{}
	if ssn := reSSN.FindString(text); ssn != "" {
		fields["ssn"] = ssn
	}
	if ein := reEIN.FindString(text); ein != "" {
		fields["ein"] = ein
	}
	if amounts := reCurrency.FindAllString(text, 8); len(amounts) > 0 {
		fields["amounts"] = strings.Join(amounts, "; ")
	}
	if date := reDate.FindString(text); date != "" {
		fields["date"] = date
	}

	issues := detectIssues(fields)
	formType := detectFormType(lower)

	result := &domain.AnalysisResult{
		FormType:          formType,
		Confidence:        confidenceFor(fields),
		ExtractedFields:   fields,
		DetectedIssues:    issues,
		SimplifiedSummary: summarize(formType, fields, issues),
		CompletenessScore: completeness(fields),
		RiskLevel:         riskFor(len(issues)),
	}
	return result
}

func detectIssues(fields map[string]string) []domain.Issue {
	issues := []domain.Issue{}
	if _, ok := fields["ssn"]; !ok {
		issues = append(issues, domain.Issue{
			Type:        "missing_field",
			Severity:    domain.SeverityWarning,
			Field:       "ssn",
			Description: "no SSN-shaped value found in the document text",
			Suggestion:  "verify the taxpayer identification number is legible",
		})
	}
	if _, ok := fields["amounts"]; !ok {
		issues = append(issues, domain.Issue{
			Type:        "missing_field",
			Severity:    domain.SeverityWarning,
			Field:       "amounts",
			Description: "no currency amounts found in the document text",
			Suggestion:  "check that dollar amounts scanned clearly",
		})
	}
	if _, ok := fields["date"]; !ok {
		issues = append(issues, domain.Issue{
			Type:        "missing_field",
			Severity:    domain.SeverityInfo,
			Field:       "date",
			Description: "no tax year or date found in the document text",
			Suggestion:  "confirm the document states its tax year",
		})
	}
	return issues
}

func detectFormType(lower string) string {
	for _, candidate := range formKeywords {
		if strings.Contains(lower, candidate.keyword) {
			return candidate.formType
		}
	}
	return "unknown"
}

func riskFor(issueCount int) domain.RiskLevel {
	switch {
	case issueCount == 0:
		return domain.RiskLow
	case issueCount <= 2:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func confidenceFor(fields map[string]string) float64 {
	// Rule-based extraction is inherently weaker than the model path.
	score := 0.3 + 0.1*float64(len(fields))
	if score > 0.7 {
		score = 0.7
	}
	return score
}

func completeness(fields map[string]string) float64 {
	const expected = 4
	score := float64(len(fields)) / expected
	if score > 1 {
		score = 1
	}
	return score
}

func summarize(formType string, fields map[string]string, issues []domain.Issue) string {
	var b strings.Builder
	if formType == "unknown" {
		b.WriteString("Could not identify the form type from the document text.")
	} else {
		fmt.Fprintf(&b, "This looks like a %s form.", formType)
	}
	fmt.Fprintf(&b, " Found %d recognizable field(s).", len(fields))
	if len(issues) > 0 {
		fmt.Fprintf(&b, " %d potential issue(s) need review.", len(issues))
	}
	return b.String()
}
