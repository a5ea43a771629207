package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taxlens/docanalyzer/internal/config"
	"github.com/taxlens/docanalyzer/internal/core/ports"
	"github.com/taxlens/docanalyzer/internal/core/usecase"
	"github.com/taxlens/docanalyzer/internal/export"
	"github.com/taxlens/docanalyzer/internal/infrastructure/dispatch"
	"github.com/taxlens/docanalyzer/internal/infrastructure/heuristic"
	"github.com/taxlens/docanalyzer/internal/infrastructure/llm/gemini"
	"github.com/taxlens/docanalyzer/internal/infrastructure/ocr"
	"github.com/taxlens/docanalyzer/internal/infrastructure/queue/nats"
	"github.com/taxlens/docanalyzer/internal/infrastructure/repository/postgres"
	"github.com/taxlens/docanalyzer/internal/infrastructure/resilience"
	"github.com/taxlens/docanalyzer/internal/infrastructure/storage/localfs"
)

// App wires configuration into the use cases both binaries share. The
// dispatch limiter lives here so its lifetime matches the app's, not the
// package's.
type App struct {
	Config config.Config

	Queue   ports.MessageQueue
	Repo    ports.DocumentRepository
	Limiter *dispatch.Limiter

	IngestUC    ports.DocumentIngestor
	ProcessUC   *usecase.ProcessDocumentUseCase
	ReadUC      ports.DocumentReader
	ReprocessUC ports.DocumentReprocessor
	DeleteUC    ports.DocumentDeleter
	Reaper      *usecase.StaleProcessingReaper
	Exporter    *export.Service

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	analyzer := gemini.New(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.AnalysisModel).
		WithExecutor(executor)
	textExtractor := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.TesseractBin,
		TesseractLang: cfg.TesseractLang,
	}, logger)
	fieldExtractor := heuristic.NewExtractor()

	limiter := dispatch.NewLimiter(cfg.WorkerConcurrency)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, queue, cfg.StagingPath)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, analyzer, textExtractor, fieldExtractor, limiter)
	readUC := usecase.NewReadDocumentUseCase(repo)
	reprocessUC := usecase.NewReprocessDocumentUseCase(repo, queue)
	deleteUC := usecase.NewDeleteDocumentUseCase(repo, storage)
	reaper := usecase.NewStaleProcessingReaper(repo, cfg.StaleProcessingTimeout)
	exporter := export.NewService(repo, logger)

	return &App{
		Config:  cfg,
		Queue:   queue,
		Repo:    repo,
		Limiter: limiter,

		IngestUC:    ingestUC,
		ProcessUC:   processUC,
		ReadUC:      readUC,
		ReprocessUC: reprocessUC,
		DeleteUC:    deleteUC,
		Reaper:      reaper,
		Exporter:    exporter,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
