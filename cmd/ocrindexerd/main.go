package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/merbantech/ocr-indexer/internal/async"
	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/export"
	"github.com/merbantech/ocr-indexer/internal/extract"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/ingest"
	"github.com/merbantech/ocr-indexer/internal/ocr"
	"github.com/merbantech/ocr-indexer/internal/parse"
	"github.com/merbantech/ocr-indexer/internal/pipeline"
	"github.com/merbantech/ocr-indexer/internal/server"
	"github.com/merbantech/ocr-indexer/internal/service"
	"github.com/merbantech/ocr-indexer/internal/store"
)

func main() {
	// Logger
	zl, _ := zap.NewProduction()
	defer zl.Sync()
	log := zl.Sugar()

	// Env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("loading .env: %v", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(slogger)

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Index, restored from the last snapshot when one exists.
	idx := index.New(slogger)
	if n, err := idx.Load(cfg.SnapshotPath); err != nil {
		log.Fatalf("loading snapshot: %v", err)
	} else if n > 0 {
		log.Infow("restored index from snapshot", "records", n, "path", cfg.SnapshotPath)
	}

	// Pipeline
	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftotext:       cfg.PdftotextCmd,
		Pdftoppm:        cfg.PdftoppmCmd,
		Tesseract:       cfg.TesseractCmd,
		TesseractLang:   cfg.TesseractLang,
		DPI:             cfg.OCRDPI,
		MaxPages:        cfg.OCRMaxPages,
		PreferTextLayer: cfg.PreferTextLayer,
	}, slogger)
	textExtractor := extract.NewOCRAdapter(ocrx, slogger)
	parser := parse.NewParser(slogger)
	mat, err := store.NewMaterializer(cfg.BucketDirs(), slogger)
	if err != nil {
		log.Fatalf("creating bucket directories: %v", err)
	}
	proc := pipeline.NewProcessor(slogger, textExtractor, parser, mat, idx, cfg.OCRTimeout)

	var queue async.Queue
	var pq *async.PipelineQueue
	if cfg.ProcessMode == config.ModeAsync {
		pq = async.NewPipelineQueue(proc, slogger,
			async.WithWorkers(cfg.Workers),
			async.WithQueueSize(cfg.QueueSize),
			async.WithProcessTimeout(cfg.OCRTimeout+time.Minute),
		)
		queue = pq
	}

	svc, err := service.NewService(cfg.ProcessMode, cfg.ScanDir, idx, proc, queue, slogger)
	if err != nil {
		log.Fatalf("creating service: %v", err)
	}
	exporter := export.NewService(idx, slogger)

	// Background snapshotting
	var wg sync.WaitGroup
	snapCtx, snapStop := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		index.NewSnapshotter(idx, cfg.SnapshotPath, cfg.SnapshotInterval).Run(snapCtx)
	}()

	if cfg.SweepOnStart {
		sweeper := ingest.NewSweeper(slogger, idx, proc, queue, cfg.ProcessMode, cfg.Workers)
		go func() {
			if _, serr := sweeper.Sweep(ctx, cfg.ScanDir); serr != nil {
				log.Errorw("startup sweep failed", "error", serr)
			}
		}()
	}

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(cfg, svc, exporter, zl).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infow("http serving", "addr", cfg.Addr(), "mode", cfg.ProcessMode)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Errorw("http shutdown", "error", err)
	}
	if pq != nil {
		pq.Shutdown(shutCtx)
	}

	// Stop the snapshotter last so the final snapshot sees the drained queue.
	snapStop()
	wg.Wait()
	log.Info("stopped.")
}

func slogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
