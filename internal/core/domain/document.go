package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further status transitions may occur.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress checkpoints written by the processing pipeline, in order.
const (
	ProgressAccepted = 10
	ProgressLoaded   = 20
	ProgressStored   = 30
	ProgressAnalyzed = 70
	ProgressDone     = 100
)

type Document struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	MimeType      string          `json:"mime_type"`
	SizeBytes     int64           `json:"size_bytes"`
	StoragePath   string          `json:"storage_path"`
	Status        DocumentStatus  `json:"status"`
	Progress      int             `json:"progress"`
	Error         string          `json:"error,omitempty"`
	Result        *AnalysisResult `json:"result,omitempty"`
	OCRText       string          `json:"ocr_text,omitempty"`
	OCRConfidence float64         `json:"ocr_confidence,omitempty"`
	OCRMethod     string          `json:"ocr_method,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// Stage maps a status/progress pair to the coarse pipeline stage label
// shown to polling clients.
func Stage(status DocumentStatus, progress int) (stage, message string) {
	switch status {
	case StatusPending:
		return "queued", "waiting for a worker"
	case StatusFailed:
		return "failed", "processing failed"
	case StatusCompleted:
		return "done", "analysis complete"
	}
	switch {
	case progress >= ProgressAnalyzed:
		return "analyzed", "post-processing analysis output"
	case progress >= ProgressStored:
		return "stored", "document stored, analysis running"
	case progress >= ProgressLoaded:
		return "loaded", "document loaded, storing"
	default:
		return "accepted", "processing started"
	}
}

// StatusProjection is the public view returned to polling clients.
type StatusProjection struct {
	DocumentID  string         `json:"document_id"`
	Status      DocumentStatus `json:"status"`
	Progress    int            `json:"progress"`
	Stage       string         `json:"stage"`
	Message     string         `json:"message"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

func (d *Document) StatusProjection() StatusProjection {
	stage, message := Stage(d.Status, d.Progress)
	if d.Status == StatusFailed && d.Error != "" {
		message = d.Error
	}
	return StatusProjection{
		DocumentID:  d.ID,
		Status:      d.Status,
		Progress:    d.Progress,
		Stage:       stage,
		Message:     message,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		ProcessedAt: d.ProcessedAt,
	}
}

// ResultProjection is the public view returned once processing completed.
type ResultProjection struct {
	DocumentID  string          `json:"document_id"`
	Status      DocumentStatus  `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Results     *AnalysisResult `json:"results"`
}

func (d *Document) ResultProjection() ResultProjection {
	return ResultProjection{
		DocumentID:  d.ID,
		Status:      d.Status,
		ProcessedAt: d.ProcessedAt,
		Results:     d.Result,
	}
}
