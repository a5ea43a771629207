package usecase

import (
	"context"
	"errors"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

// ReadDocumentUseCase serves the public status and result projections.
type ReadDocumentUseCase struct {
	repo ports.DocumentRepository
}

func NewReadDocumentUseCase(repo ports.DocumentRepository) *ReadDocumentUseCase {
	return &ReadDocumentUseCase{repo: repo}
}

func (uc *ReadDocumentUseCase) Status(ctx context.Context, id string) (domain.StatusProjection, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return domain.StatusProjection{}, err
	}
	return doc.StatusProjection(), nil
}

// Results returns the final analysis. Asking before completion is a state
// conflict, distinct from the document not existing.
func (uc *ReadDocumentUseCase) Results(ctx context.Context, id string) (domain.ResultProjection, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return domain.ResultProjection{}, err
	}
	if doc.Status != domain.StatusCompleted {
		return domain.ResultProjection{}, domain.WrapError(
			domain.ErrConflict,
			"read results",
			errors.New("processing not complete"),
		)
	}
	return doc.ResultProjection(), nil
}

func (uc *ReadDocumentUseCase) List(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return uc.repo.List(ctx, status, limit)
}
