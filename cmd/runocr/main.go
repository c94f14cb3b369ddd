// runocr pushes one file through the full pipeline inline and prints the
// resulting record as JSON. Useful for tuning OCR settings against a single
// document without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/extract"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/ocr"
	"github.com/merbantech/ocr-indexer/internal/parse"
	"github.com/merbantech/ocr-indexer/internal/pipeline"
	"github.com/merbantech/ocr-indexer/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <path-to-document>")
		os.Exit(2)
	}
	srcPath := os.Args[1]
	if _, err := os.Stat(srcPath); err != nil {
		logger.Error("cannot read input", "path", srcPath, "error", err)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("loading .env", "error", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCRTimeout+time.Minute)
	defer cancel()

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftotext:       cfg.PdftotextCmd,
		Pdftoppm:        cfg.PdftoppmCmd,
		Tesseract:       cfg.TesseractCmd,
		TesseractLang:   cfg.TesseractLang,
		DPI:             cfg.OCRDPI,
		MaxPages:        cfg.OCRMaxPages,
		PreferTextLayer: cfg.PreferTextLayer,
	}, logger)
	textExtractor := extract.NewOCRAdapter(ocrx, logger)
	mat, err := store.NewMaterializer(cfg.BucketDirs(), logger)
	if err != nil {
		logger.Error("creating bucket directories", "error", err)
		os.Exit(1)
	}

	idx := index.New(logger)
	proc := pipeline.NewProcessor(logger, textExtractor, parse.NewParser(logger), mat, idx, cfg.OCRTimeout)

	start := time.Now()
	rec, err := proc.Process(ctx, srcPath, filepath.Base(srcPath))
	if err != nil {
		logger.Error("pipeline aborted", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("pipeline OK",
		"status", string(rec.Status),
		"stored_path", rec.StoredPath,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
