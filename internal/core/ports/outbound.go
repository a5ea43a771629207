package ports

import (
	"context"
	"io"
	"time"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

// DocumentRepository is the status store: the single source of truth for
// per-document lifecycle state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, progress int, errMessage string) error
	StoreResult(ctx context.Context, id string, result *domain.AnalysisResult) error
	SaveOCRText(ctx context.Context, id string, ocr domain.OCRResult) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error)
	DemoteStaleProcessing(ctx context.Context, olderThan time.Duration, message string) (int, error)
}

// ObjectStorage stores source document blobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes document-uploaded events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, event domain.UploadedEvent) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, domain.UploadedEvent) error) error
}

// AnalysisProvider is the primary document-understanding collaborator.
type AnalysisProvider interface {
	Analyze(ctx context.Context, data []byte, mimeType, filename string) (*domain.AnalysisResult, error)
}

// OCRProvider extracts plain text from document bytes; the fallback path.
type OCRProvider interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (domain.OCRResult, error)
}

// FieldExtractor runs rule-based extraction over OCR text.
type FieldExtractor interface {
	Extract(text string) *domain.AnalysisResult
}
