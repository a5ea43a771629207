// Package export produces XLSX reports over completed document analyses.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/core/ports"
)

const sheetName = "Documents"

type Service struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewService(repo ports.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportCompletedXLSX returns an XLSX workbook (as bytes) summarizing the
// most recent completed analyses.
func (s *Service) ExportCompletedXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	docs, err := s.repo.List(ctx, domain.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(sheet)
	f.DeleteSheet("Sheet1")

	header := []any{"Document ID", "Filename", "Form Type", "Risk", "Completeness", "Confidence", "Issues", "Processed At", "Summary"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, doc := range docs {
		row := buildRow(doc)
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("exported completed documents",
		"count", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func buildRow(doc domain.Document) []any {
	processedAt := ""
	if doc.ProcessedAt != nil {
		processedAt = doc.ProcessedAt.UTC().Format(time.RFC3339)
	}

	formType, summary := "", ""
	var risk domain.RiskLevel
	var completenessScore, confidence float64
	issueCount := 0
	if doc.Result != nil {
		formType = doc.Result.FormType
		risk = doc.Result.RiskLevel
		completenessScore = doc.Result.CompletenessScore
		confidence = doc.Result.Confidence
		issueCount = len(doc.Result.DetectedIssues)
		summary = doc.Result.SimplifiedSummary
	}

	return []any{
		doc.ID,
		doc.Filename,
		formType,
		string(risk),
		completenessScore,
		confidence,
		issueCount,
		processedAt,
		summary,
	}
}
