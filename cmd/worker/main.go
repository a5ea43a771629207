package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taxlens/docanalyzer/internal/bootstrap"
	"github.com/taxlens/docanalyzer/internal/config"
	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/observability/logging"
	"github.com/taxlens/docanalyzer/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app.ProcessUC.SetFallbackObserver(func() {
		workerMetrics.RecordFallback("worker")
	})

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go runReaper(ctx, app, workerMetrics, cfg, logger)

	var wg sync.WaitGroup

	logger.Info("worker subscribed", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, event domain.UploadedEvent) error {
		if !event.UploadedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(event.UploadedAt))
		}

		// Admission first: the subscription callback blocks until a slot
		// frees up, then the document runs on its own goroutine.
		if err := app.Limiter.AcquireSlot(handlerCtx); err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer app.Limiter.ReleaseSlot()

			processCtx, cancel := context.WithTimeout(ctx, cfg.ProcessTimeout)
			defer cancel()

			workerMetrics.StartDocument()
			start := time.Now()
			processErr := app.ProcessUC.Process(processCtx, event.DocumentID, event.StagingPath)
			workerMetrics.FinishDocument("worker", time.Since(start), processErr)
			if processErr != nil {
				logger.Error("document processing failed",
					"document_id", event.DocumentID,
					"error", processErr,
				)
			}
		}()
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	wg.Wait()
}

// runReaper periodically demotes records stuck in processing so pollers see
// a terminal state even after a worker crash.
func runReaper(
	ctx context.Context,
	app *bootstrap.App,
	workerMetrics *metrics.WorkerMetrics,
	cfg config.Config,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			demoted, err := app.Reaper.Sweep(ctx)
			if err != nil {
				logger.Error("stale processing sweep failed", "error", err)
				continue
			}
			if demoted > 0 {
				workerMetrics.RecordStaleDemotions(demoted)
				logger.Info("demoted stale processing documents", "count", demoted)
			}
		}
	}
}
