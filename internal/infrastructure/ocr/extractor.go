package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

const (
	MethodPDFText  = "pdf-text"
	MethodImageOCR = "image-ocr"
	MethodPlain    = "plain-text"
)

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	PSM           int    // 6 works well for uniform blocks of form text
}

// Extractor is the text-recognition fallback collaborator. It picks a
// strategy from the mime type: PDF text layer, tesseract for images, or
// pass-through for plain text.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (e *Extractor) ExtractText(ctx context.Context, data []byte, mimeType string) (domain.OCRResult, error) {
	switch {
	case strings.HasPrefix(mimeType, "application/pdf"):
		return e.extractPDF(data)
	case strings.HasPrefix(mimeType, "image/"):
		return e.extractImage(ctx, data, mimeType)
	case strings.HasPrefix(mimeType, "text/"):
		return e.extractPlain(data)
	default:
		return domain.OCRResult{}, fmt.Errorf("unsupported mime type for ocr: %q", mimeType)
	}
}

func (e *Extractor) extractPlain(data []byte) (domain.OCRResult, error) {
	if !utf8.Valid(data) {
		return domain.OCRResult{}, fmt.Errorf("text document is not valid utf-8")
	}
	text := normalize(string(data))
	if text == "" {
		return domain.OCRResult{}, fmt.Errorf("empty text document")
	}
	return domain.OCRResult{
		Text:       text,
		Confidence: heuristicConfidence(text),
		Method:     MethodPlain,
	}, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte, mimeType string) (domain.OCRResult, error) {
	path, cleanup, err := spoolTemp(data, extForMime(mimeType))
	if err != nil {
		return domain.OCRResult{}, err
	}
	defer cleanup()

	args := []string{path, "stdout", "-l", e.cfg.TesseractLang, "--psm", fmt.Sprintf("%d", e.cfg.PSM)}
	stdout, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("tesseract: %w: %s", err, truncate(string(stderr), 512))
	}

	text := normalize(string(stdout))
	if text == "" {
		return domain.OCRResult{}, fmt.Errorf("tesseract produced no text")
	}
	return domain.OCRResult{
		Text:       text,
		Confidence: heuristicConfidence(text),
		Method:     MethodImageOCR,
	}, nil
}

func spoolTemp(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp("", "ocr-src-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create ocr temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("write ocr temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("close ocr temp file: %w", err)
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func extForMime(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return ".png"
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return ".jpg"
	case strings.Contains(mimeType, "tiff"):
		return ".tif"
	default:
		return ".img"
	}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
