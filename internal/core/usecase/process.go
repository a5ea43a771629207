package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

// inflightGuard rejects duplicate concurrent runs for the same document id.
type inflightGuard interface {
	TryAcquire(id string) bool
	Release(id string)
}

type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	analyzer ports.AnalysisProvider
	ocr      ports.OCRProvider
	fields   ports.FieldExtractor
	guard    inflightGuard

	onFallback func()
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	analyzer ports.AnalysisProvider,
	ocr ports.OCRProvider,
	fields ports.FieldExtractor,
	guard inflightGuard,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
		ocr:      ocr,
		fields:   fields,
		guard:    guard,
	}
}

// SetFallbackObserver registers a hook fired whenever analysis succeeds via
// the OCR path instead of the primary provider.
func (uc *ProcessDocumentUseCase) SetFallbackObserver(fn func()) {
	uc.onFallback = fn
}

// Process drives one document to a terminal state. stagingPath points at the
// spooled upload; on manual retry it is empty and the bytes are read back
// from object storage. The staging file is removed whatever the outcome.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, documentID, stagingPath string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if err := checkStartable(doc.Status); err != nil {
		return err
	}

	if !uc.guard.TryAcquire(documentID) {
		// The original caller already triggered an attempt; a second
		// concurrent trigger is a soft no-op, not an error.
		slog.Warn("duplicate processing trigger ignored", "document_id", documentID)
		return nil
	}
	defer uc.guard.Release(documentID)
	defer uc.removeStaging(stagingPath, documentID)

	progress := domain.ProgressAccepted
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, progress, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, progress, err := uc.runPipeline(ctx, doc, stagingPath)
	if err != nil {
		if failErr := uc.markStatus(ctx, documentID, domain.StatusFailed, progress, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.StoreResult(ctx, documentID, result); err != nil {
		if failErr := uc.markStatus(ctx, documentID, domain.StatusFailed, progress, err.Error()); failErr != nil {
			return fmt.Errorf("store result: %w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func checkStartable(status domain.DocumentStatus) error {
	switch status {
	case domain.StatusProcessing:
		return domain.WrapError(domain.ErrConflict, "start processing", errors.New("already in progress"))
	case domain.StatusCompleted:
		return domain.WrapError(domain.ErrConflict, "start processing", errors.New("already processed"))
	default:
		// pending and failed (manual retry) are both startable.
		return nil
	}
}

func (uc *ProcessDocumentUseCase) runPipeline(
	ctx context.Context,
	doc *domain.Document,
	stagingPath string,
) (*domain.AnalysisResult, int, error) {
	progress := domain.ProgressAccepted

	data, mimeType, err := uc.loadBytes(ctx, doc, stagingPath)
	if err != nil {
		return nil, progress, err
	}
	progress = domain.ProgressLoaded
	if err := uc.markStatus(ctx, doc.ID, domain.StatusProcessing, progress, ""); err != nil {
		return nil, progress, err
	}

	if stagingPath != "" {
		if err := uc.storage.Save(ctx, doc.StoragePath, bytes.NewReader(data)); err != nil {
			return nil, progress, fmt.Errorf("persist document blob: %w", err)
		}
	}
	progress = domain.ProgressStored
	if err := uc.markStatus(ctx, doc.ID, domain.StatusProcessing, progress, ""); err != nil {
		return nil, progress, err
	}

	result, err := uc.analyze(ctx, doc, data, mimeType)
	if err != nil {
		return nil, progress, err
	}
	progress = domain.ProgressAnalyzed
	if err := uc.markStatus(ctx, doc.ID, domain.StatusProcessing, progress, ""); err != nil {
		return nil, progress, err
	}

	result.Metadata = domain.DocumentMetadata{
		Filename:   doc.Filename,
		SizeBytes:  doc.SizeBytes,
		MimeType:   mimeType,
		UploadedAt: doc.CreatedAt,
	}
	result.Normalize()
	return result, progress, nil
}

// analyze invokes the generative provider and falls back to OCR plus
// rule-based extraction when it fails.
func (uc *ProcessDocumentUseCase) analyze(
	ctx context.Context,
	doc *domain.Document,
	data []byte,
	mimeType string,
) (*domain.AnalysisResult, error) {
	result, err := uc.analyzer.Analyze(ctx, data, mimeType, doc.Filename)
	if err == nil {
		result.AnalysisPath = "primary"
		return result, nil
	}
	slog.Warn("primary analysis failed, falling back to ocr",
		"document_id", doc.ID,
		"error", err,
	)

	ocrResult, ocrErr := uc.ocr.ExtractText(ctx, data, mimeType)
	if ocrErr != nil {
		return nil, fmt.Errorf("analysis failed (%v); ocr fallback: %w", err, ocrErr)
	}
	if saveErr := uc.repo.SaveOCRText(ctx, doc.ID, ocrResult); saveErr != nil {
		return nil, fmt.Errorf("save ocr output: %w", saveErr)
	}

	result = uc.fields.Extract(ocrResult.Text)
	result.AnalysisPath = "fallback"
	if uc.onFallback != nil {
		uc.onFallback()
	}
	if result.Confidence <= 0 {
		result.Confidence = ocrResult.Confidence
	}
	return result, nil
}

func (uc *ProcessDocumentUseCase) loadBytes(
	ctx context.Context,
	doc *domain.Document,
	stagingPath string,
) ([]byte, string, error) {
	var data []byte
	var err error

	if stagingPath != "" {
		data, err = os.ReadFile(stagingPath)
		if err != nil {
			return nil, "", fmt.Errorf("read staged upload: %w", err)
		}
	} else {
		reader, openErr := uc.storage.Open(ctx, doc.StoragePath)
		if openErr != nil {
			return nil, "", fmt.Errorf("open stored document: %w", openErr)
		}
		defer reader.Close()
		data, err = io.ReadAll(reader)
		if err != nil {
			return nil, "", fmt.Errorf("read stored document: %w", err)
		}
	}

	return data, detectMimeType(doc, data), nil
}

func detectMimeType(doc *domain.Document, data []byte) string {
	if doc.MimeType != "" && doc.MimeType != "application/octet-stream" {
		return doc.MimeType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(doc.Filename)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

func (uc *ProcessDocumentUseCase) markStatus(
	ctx context.Context,
	documentID string,
	status domain.DocumentStatus,
	progress int,
	errMessage string,
) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, progress, errMessage)
}

// removeStaging is cleanup, not correctness: its own failure is logged and
// never escalated.
func (uc *ProcessDocumentUseCase) removeStaging(stagingPath, documentID string) {
	if stagingPath == "" {
		return
	}
	if err := os.Remove(stagingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove staging file failed",
			"document_id", documentID,
			"path", stagingPath,
			"error", err,
		)
	}
}

// StaleProcessingReaper demotes records stuck in processing, e.g. after a
// worker crash mid-flight, so pollers eventually see a terminal state.
type StaleProcessingReaper struct {
	repo    ports.DocumentRepository
	maxAge  time.Duration
	message string
}

func NewStaleProcessingReaper(repo ports.DocumentRepository, maxAge time.Duration) *StaleProcessingReaper {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &StaleProcessingReaper{
		repo:    repo,
		maxAge:  maxAge,
		message: "processing did not finish in time",
	}
}

func (r *StaleProcessingReaper) Sweep(ctx context.Context) (int, error) {
	demoted, err := r.repo.DemoteStaleProcessing(ctx, r.maxAge, r.message)
	if err != nil {
		return 0, fmt.Errorf("demote stale processing records: %w", err)
	}
	if demoted > 0 {
		slog.Warn("demoted stale processing records", "count", demoted, "max_age", r.maxAge.String())
	}
	return demoted, nil
}
