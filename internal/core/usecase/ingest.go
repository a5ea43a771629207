package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo       ports.DocumentRepository
	queue      ports.MessageQueue
	stagingDir string
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	queue ports.MessageQueue,
	stagingDir string,
) *IngestDocumentUseCase {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &IngestDocumentUseCase{
		repo:       repo,
		queue:      queue,
		stagingDir: stagingDir,
	}
}

// Upload spools the document to the staging area, creates the pending
// status record and hands the id to the processing queue. Analysis itself
// happens asynchronously; callers observe it through the status projection.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	stagingPath, written, err := uc.spool(id, filename, body)
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if size <= 0 {
		size = written
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		SizeBytes:   size,
		StoragePath: fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)),
		Status:      domain.StatusPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		_ = os.Remove(stagingPath)
		return nil, fmt.Errorf("create document record: %w", err)
	}

	event := domain.UploadedEvent{
		DocumentID:  id,
		StagingPath: stagingPath,
		UploadedAt:  now,
	}
	if err := uc.queue.PublishDocumentUploaded(ctx, event); err != nil {
		_ = os.Remove(stagingPath)
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) spool(id, filename string, body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(uc.stagingDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create staging dir: %w", err)
	}

	f, err := os.CreateTemp(uc.stagingDir, id+"-*"+filepath.Ext(sanitizeFilename(filename)))
	if err != nil {
		return "", 0, fmt.Errorf("create staging file: %w", err)
	}

	written, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("close staging file: %w", err)
	}
	return f.Name(), written, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
