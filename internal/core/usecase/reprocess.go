package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

// ReprocessDocumentUseCase re-queues a document for analysis. State
// conflicts surface synchronously; the work itself happens on a worker.
type ReprocessDocumentUseCase struct {
	repo  ports.DocumentRepository
	queue ports.MessageQueue
}

func NewReprocessDocumentUseCase(repo ports.DocumentRepository, queue ports.MessageQueue) *ReprocessDocumentUseCase {
	return &ReprocessDocumentUseCase{repo: repo, queue: queue}
}

func (uc *ReprocessDocumentUseCase) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case domain.StatusProcessing:
		return nil, domain.WrapError(domain.ErrConflict, "reprocess", errors.New("already in progress"))
	case domain.StatusCompleted:
		return nil, domain.WrapError(domain.ErrConflict, "reprocess", errors.New("already processed"))
	}

	// The staging file from the original upload is gone; the worker reads
	// the bytes back from object storage.
	event := domain.UploadedEvent{
		DocumentID: doc.ID,
		UploadedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishDocumentUploaded(ctx, event); err != nil {
		return nil, fmt.Errorf("publish reprocess event: %w", err)
	}
	return doc, nil
}
