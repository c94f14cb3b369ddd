// Package ingest sweeps the scan directory: files dropped there outside the
// upload endpoint (or left behind by a crash) get pushed through the same
// pipeline as uploads.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/merbantech/ocr-indexer/constants"
	"github.com/merbantech/ocr-indexer/internal/async"
	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/store"
)

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

type SweepStats struct {
	Scanned    int
	Matched    int
	Dispatched int
	Skipped    int
}

type Sweeper struct {
	logger *slog.Logger
	idx    *index.Index
	proc   async.Pipeline
	queue  async.Queue
	mode   string
	limit  int
}

// NewSweeper builds a sweeper; limit bounds concurrent inline pipeline runs
// in immediate mode (async mode dispatches to the queue instead).
func NewSweeper(logger *slog.Logger, idx *index.Index, proc async.Pipeline, queue async.Queue, mode string, limit int) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 2
	}
	return &Sweeper{logger: logger, idx: idx, proc: proc, queue: queue, mode: mode, limit: limit}
}

// Sweep enumerates scanDir and dispatches every eligible file. Hidden files
// and unsupported extensions are skipped, not errors.
func (s *Sweeper) Sweep(ctx context.Context, scanDir string) (SweepStats, error) {
	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return SweepStats{}, err
	}

	var stats SweepStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stats.Scanned++
		name := e.Name()
		if IsHidden(name) || !constants.IsAllowedExt(filepath.Ext(name)) {
			stats.Skipped++
			continue
		}
		stats.Matched++

		src := filepath.Join(scanDir, name)
		s.idx.MarkPending(name, store.NormalizeFilename(name))

		if s.mode == config.ModeAsync {
			if err := s.queue.Enqueue(ctx, async.Job{
				Original:    name,
				SrcPath:     src,
				TraceID:     uuid.NewString(),
				SubmittedAt: time.Now().UTC(),
			}); err != nil {
				s.logger.Error("sweep enqueue failed", "file", name, "error", err)
				continue
			}
			stats.Dispatched++
			continue
		}

		stats.Dispatched++
		g.Go(func() error {
			if _, perr := s.proc.Process(gctx, src, name); perr != nil {
				s.logger.Error("sweep processing aborted", "file", name, "error", perr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	s.logger.Info("sweep completed",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"dispatched", stats.Dispatched,
		"skipped", stats.Skipped,
	)
	return stats, nil
}
