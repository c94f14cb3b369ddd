package extract

import (
	"context"
	"log/slog"

	"github.com/merbantech/ocr-indexer/internal/ocr"
)

// OCRAdapter exposes the external-binary OCR engine as a TextExtractor.
// Every failure, including a context deadline hit mid-OCR, comes back as an
// *ExtractionError so the orchestrator can fold it into a failed record.
type OCRAdapter struct {
	e *ocr.Extractor
}

func NewOCRAdapter(e *ocr.Extractor, _ *slog.Logger) *OCRAdapter {
	return &OCRAdapter{e: e}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	res := TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return res, &ExtractionError{Path: path, Err: err}
	}
	return res, nil
}
