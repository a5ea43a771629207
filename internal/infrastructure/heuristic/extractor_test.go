package heuristic

import (
	"testing"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

func TestExtractRecognizesW2WithFullFields(t *testing.T) {
	text := `Form W-2 Wage and Tax Statement 2025
Employee SSN: 123-45-6789
Employer EIN: 12-3456789
Wages, tips: $52,000.00  Federal tax withheld: $6,240.00`

	result := NewExtractor().Extract(text)

	if result.FormType != "W-2" {
		t.Fatalf("FormType = %q, want W-2", result.FormType)
	}
	if result.ExtractedFields["ssn"] != "123-45-6789" {
		t.Fatalf("ssn = %q", result.ExtractedFields["ssn"])
	}
	if result.ExtractedFields["ein"] != "12-3456789" {
		t.Fatalf("ein = %q", result.ExtractedFields["ein"])
	}
	if result.ExtractedFields["amounts"] == "" {
		t.Fatal("expected currency amounts to be captured")
	}
	if len(result.DetectedIssues) != 0 {
		t.Fatalf("a fully populated form should raise no issues, got %+v", result.DetectedIssues)
	}
	if result.RiskLevel != domain.RiskLow {
		t.Fatalf("RiskLevel = %q, want low", result.RiskLevel)
	}
	if result.Confidence != 0.7 {
		t.Fatalf("Confidence = %v, want the rule-based cap 0.7", result.Confidence)
	}
	if result.CompletenessScore != 1 {
		t.Fatalf("CompletenessScore = %v, want 1", result.CompletenessScore)
	}
}

func TestExtractFlagsMissingSSNAndAmounts(t *testing.T) {
	result := NewExtractor().Extract("an unreadable scan with no recognizable values")

	if result.FormType != "unknown" {
		t.Fatalf("FormType = %q, want unknown", result.FormType)
	}
	if len(result.DetectedIssues) < 2 {
		t.Fatalf("expected issues for missing ssn and amounts, got %+v", result.DetectedIssues)
	}
	fields := map[string]bool{}
	for _, issue := range result.DetectedIssues {
		fields[issue.Field] = true
		if issue.Type != "missing_field" {
			t.Fatalf("unexpected issue type %q", issue.Type)
		}
	}
	if !fields["ssn"] || !fields["amounts"] {
		t.Fatalf("expected ssn and amounts issues, got %+v", fields)
	}
	if result.RiskLevel != domain.RiskHigh {
		t.Fatalf("RiskLevel = %q, want high for three issues", result.RiskLevel)
	}
}

func TestExtractDetects1099Variants(t *testing.T) {
	cases := map[string]string{
		"Form 1099-NEC Nonemployee Compensation": "1099-NEC",
		"Form 1099-MISC Miscellaneous Income":    "1099-MISC",
		"Form 1099-INT Interest Income":          "1099-INT",
		"some other 1099 paper":                  "1099",
		"Form 1040 U.S. Individual Income Tax":   "1040",
		"Schedule C Profit or Loss":              "Schedule C",
	}
	extractor := NewExtractor()
	for text, want := range cases {
		if got := extractor.Extract(text).FormType; got != want {
			t.Errorf("Extract(%q).FormType = %q, want %q", text, got, want)
		}
	}
}

func TestExtractRiskScalesWithIssueCount(t *testing.T) {
	extractor := NewExtractor()

	// ssn + amounts + date present -> no issues -> low.
	low := extractor.Extract("SSN 123-45-6789 paid $1,000.00 in 2025")
	if low.RiskLevel != domain.RiskLow {
		t.Fatalf("expected low risk, got %q", low.RiskLevel)
	}

	// amounts + date present, ssn missing -> one issue -> medium.
	medium := extractor.Extract("total $1,000.00 for tax year 2025")
	if medium.RiskLevel != domain.RiskMedium {
		t.Fatalf("expected medium risk, got %q", medium.RiskLevel)
	}
}
