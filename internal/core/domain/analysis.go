package domain

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type IssueSeverity string

const (
	SeverityInfo    IssueSeverity = "info"
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Issue is a single problem detected in an analyzed document.
type Issue struct {
	Type        string        `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Field       string        `json:"field,omitempty"`
	Description string        `json:"description"`
	Suggestion  string        `json:"suggestion,omitempty"`
}

// DocumentMetadata is attached to every stored result for downstream display.
type DocumentMetadata struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AnalysisResult is the structured output of document understanding,
// produced either by the generative provider or the OCR fallback path.
type AnalysisResult struct {
	FormType          string            `json:"form_type"`
	Confidence        float64           `json:"confidence"`
	ExtractedFields   map[string]string `json:"extracted_fields"`
	DetectedIssues    []Issue           `json:"detected_issues"`
	SimplifiedSummary string            `json:"simplified_summary"`
	CompletenessScore float64           `json:"completeness_score"`
	RiskLevel         RiskLevel         `json:"risk_level"`
	AnalysisPath      string            `json:"analysis_path,omitempty"`
	Metadata          DocumentMetadata  `json:"metadata"`
}

// Normalize fills unset fields with neutral defaults so a stored result
// always has a complete shape regardless of which path produced it.
func (r *AnalysisResult) Normalize() {
	if r.FormType == "" {
		r.FormType = "unknown"
	}
	if r.Confidence <= 0 {
		r.Confidence = 0.5
	}
	if r.CompletenessScore <= 0 {
		r.CompletenessScore = 0.5
	}
	switch r.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		r.RiskLevel = RiskMedium
	}
	if r.ExtractedFields == nil {
		r.ExtractedFields = map[string]string{}
	}
	if r.DetectedIssues == nil {
		r.DetectedIssues = []Issue{}
	}
}

// OCRResult is the output of the text-recognition fallback collaborator.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}
