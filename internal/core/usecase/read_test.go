package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

func TestStatusProjectsFailedMessage(t *testing.T) {
	doc := pendingDoc("doc-10")
	doc.Status = domain.StatusFailed
	doc.Progress = 30
	doc.Error = "analysis failed"
	uc := NewReadDocumentUseCase(&repoFake{doc: doc})

	projection, err := uc.Status(context.Background(), "doc-10")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if projection.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", projection.Status)
	}
	if projection.Message != "analysis failed" {
		t.Fatalf("a failed projection must expose the error message, got %q", projection.Message)
	}
}

func TestStatusPropagatesNotFound(t *testing.T) {
	repo := &repoFake{getErr: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("no row"))}
	uc := NewReadDocumentUseCase(repo)

	if _, err := uc.Status(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestResultsRejectsUnfinishedDocument(t *testing.T) {
	doc := pendingDoc("doc-11")
	doc.Status = domain.StatusProcessing
	uc := NewReadDocumentUseCase(&repoFake{doc: doc})

	if _, err := uc.Results(context.Background(), "doc-11"); !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected a conflict for unfinished processing, got %v", err)
	}
}

func TestResultsReturnsCompletedProjection(t *testing.T) {
	processedAt := time.Now().UTC()
	doc := pendingDoc("doc-12")
	doc.Status = domain.StatusCompleted
	doc.Progress = 100
	doc.ProcessedAt = &processedAt
	doc.Result = &domain.AnalysisResult{FormType: "W-2", RiskLevel: domain.RiskLow}
	uc := NewReadDocumentUseCase(&repoFake{doc: doc})

	projection, err := uc.Results(context.Background(), "doc-12")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if projection.Results == nil || projection.Results.FormType != "W-2" {
		t.Fatalf("expected the stored result, got %+v", projection.Results)
	}
	if projection.ProcessedAt == nil {
		t.Fatal("a completed projection must carry processed_at")
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := &listRepoFake{}
	uc := NewReadDocumentUseCase(repo)

	if _, err := uc.List(context.Background(), "", 0); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastLimit != 50 {
		t.Fatalf("expected the default limit 50, got %d", repo.lastLimit)
	}

	if _, err := uc.List(context.Background(), domain.StatusCompleted, 1000); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastLimit != 50 {
		t.Fatalf("expected oversized limits to fall back to 50, got %d", repo.lastLimit)
	}

	if _, err := uc.List(context.Background(), domain.StatusCompleted, 25); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastLimit != 25 {
		t.Fatalf("expected an in-range limit to pass through, got %d", repo.lastLimit)
	}
}

type listRepoFake struct {
	repoFake
	lastLimit int
}

func (f *listRepoFake) List(_ context.Context, _ domain.DocumentStatus, limit int) ([]domain.Document, error) {
	f.lastLimit = limit
	return nil, nil
}
