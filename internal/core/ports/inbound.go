package ports

import (
	"context"
	"io"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor drives one document through analysis to a terminal state.
// stagingPath may be empty on manual retry; the bytes are then read back
// from object storage.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID, stagingPath string) error
}

// DocumentReader is the inbound read model for document state and results.
type DocumentReader interface {
	Status(ctx context.Context, id string) (domain.StatusProjection, error)
	Results(ctx context.Context, id string) (domain.ResultProjection, error)
	List(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error)
}

// DocumentReprocessor re-queues a terminal (failed) document for analysis.
type DocumentReprocessor interface {
	Reprocess(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentDeleter removes a document record and its stored blob.
type DocumentDeleter interface {
	Delete(ctx context.Context, id string) (bool, error)
}
