package ocr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/taxlens/docanalyzer/internal/core/domain"
)

// extractPDF reads the embedded text layer. Scanned PDFs without one are
// reported as an error rather than silently returning nothing.
func (e *Extractor) extractPDF(data []byte) (result domain.OCRResult, err error) {
	defer func() {
		// The pdf package panics on some malformed files.
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("read pdf text layer: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("read pdf text: %w", err)
	}

	text := normalize(string(raw))
	if text == "" {
		return domain.OCRResult{}, fmt.Errorf("pdf has no extractable text layer")
	}
	return domain.OCRResult{
		Text:       text,
		Confidence: heuristicConfidence(text),
		Method:     MethodPDFText,
	}, nil
}
