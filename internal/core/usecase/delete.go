package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

// DeleteDocumentUseCase removes a document record and its stored blob.
type DeleteDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
}

func NewDeleteDocumentUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage) *DeleteDocumentUseCase {
	return &DeleteDocumentUseCase{repo: repo, storage: storage}
}

// Delete is idempotent: the boolean reports whether a record existed.
func (uc *DeleteDocumentUseCase) Delete(ctx context.Context, id string) (bool, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch document: %w", err)
	}

	existed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete document record: %w", err)
	}

	if doc.StoragePath != "" {
		if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
			// The record is gone; a dangling blob is logged, not fatal.
			slog.Warn("delete stored blob failed",
				"document_id", id,
				"storage_path", doc.StoragePath,
				"error", err,
			)
		}
	}
	return existed, nil
}
