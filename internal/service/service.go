// Package service is the API facade over the pipeline and the document
// index. Transport layers (HTTP here, anything else later) translate its
// grpc status codes; they never reach into the pipeline directly.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/merbantech/ocr-indexer/constants"
	"github.com/merbantech/ocr-indexer/internal/async"
	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/store"
)

type Service struct {
	mode    string
	scanDir string
	idx     *index.Index
	proc    async.Pipeline
	queue   async.Queue
	logger  *slog.Logger
}

// NewService wires the facade. queue may be nil in immediate mode.
func NewService(mode, scanDir string, idx *index.Index, proc async.Pipeline, queue async.Queue, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(scanDir, 0o755); err != nil {
		return nil, err
	}
	return &Service{
		mode:    mode,
		scanDir: scanDir,
		idx:     idx,
		proc:    proc,
		queue:   queue,
		logger:  logger,
	}, nil
}

func (s *Service) Mode() string { return s.mode }

// Upload receives file content under its original filename. In immediate
// mode the terminal record comes back after the full pipeline run; in async
// mode the pending record comes back and a worker finishes later.
func (s *Service) Upload(ctx context.Context, filename string, content []byte) (index.Record, error) {
	original := filepath.Base(strings.TrimSpace(filename))
	if original == "" || original == "." || original == string(filepath.Separator) {
		return index.Record{}, status.Error(codes.InvalidArgument, "filename is required")
	}
	if !constants.IsAllowedExt(filepath.Ext(original)) {
		s.logger.Warn("rejected upload with unsupported extension", "file", original)
		return index.Record{}, status.Errorf(codes.InvalidArgument, "unsupported file type: %s", filepath.Ext(original))
	}
	if len(content) == 0 {
		return index.Record{}, status.Error(codes.InvalidArgument, "file content is empty")
	}

	dest := filepath.Join(s.scanDir, original)
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		s.logger.Error("failed to persist upload", "file", original, "error", err)
		return index.Record{}, status.Errorf(codes.Internal, "persist upload: %v", err)
	}

	rec := s.idx.MarkPending(original, store.NormalizeFilename(original))
	s.logger.Info("upload received", "file", original, "bytes", len(content), "mode", s.mode)

	if s.mode == config.ModeImmediate {
		out, err := s.proc.Process(ctx, dest, original)
		if err != nil {
			return index.Record{}, status.Errorf(codes.Internal, "process: %v", err)
		}
		return out, nil
	}

	if err := s.queue.Enqueue(ctx, async.Job{
		Original:    original,
		SrcPath:     dest,
		TraceID:     uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("enqueue failed", "file", original, "error", err)
		return index.Record{}, status.Errorf(codes.Internal, "enqueue: %v", err)
	}
	return rec, nil
}

// Status returns the lifecycle status for a filename.
func (s *Service) Status(filename string) (constants.DocStatus, error) {
	rec, ok := s.idx.Get(filename)
	if !ok {
		return "", status.Errorf(codes.NotFound, "no record for %q", filename)
	}
	return rec.Status, nil
}

// Result returns the terminal record, or NotFound / FailedPrecondition while
// the document is still pending or processing.
func (s *Service) Result(filename string) (index.Record, error) {
	rec, ok := s.idx.Get(filename)
	if !ok {
		return index.Record{}, status.Errorf(codes.NotFound, "no record for %q", filename)
	}
	if !rec.Status.Terminal() {
		return index.Record{}, status.Errorf(codes.FailedPrecondition, "%q is still %s", filename, rec.Status)
	}
	return rec, nil
}

// List returns record summaries, optionally filtered by a status string.
func (s *Service) List(statusFilter string) ([]index.Record, error) {
	if statusFilter == "" {
		return s.idx.List(nil), nil
	}
	st, ok := constants.ParseStatus(statusFilter)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", statusFilter)
	}
	return s.idx.List(&st), nil
}

// Search returns filenames whose name contains the query, case-insensitive.
func (s *Service) Search(query string) []string {
	return s.idx.Search(query)
}

// Stats returns record counts per status plus a total.
func (s *Service) Stats() map[string]int {
	return s.idx.Stats()
}

// Metadata returns the record for any status; used for the metadata
// endpoint, which serves index state rather than filesystem walks.
func (s *Service) Metadata(filename string) (index.Record, error) {
	rec, ok := s.idx.Get(filename)
	if !ok {
		return index.Record{}, status.Errorf(codes.NotFound, "no record for %q", filename)
	}
	return rec, nil
}

// Download resolves the stored artifact path for byte-serving. The index is
// the sole authority on where the file lives.
func (s *Service) Download(filename string) (index.Record, error) {
	rec, ok := s.idx.Get(filename)
	if !ok {
		return index.Record{}, status.Errorf(codes.NotFound, "no record for %q", filename)
	}
	if !rec.Status.Terminal() {
		return index.Record{}, status.Errorf(codes.FailedPrecondition, "%q is still %s", filename, rec.Status)
	}
	if rec.StoredPath == "" {
		return index.Record{}, status.Errorf(codes.NotFound, "no stored artifact for %q", filename)
	}
	if _, err := os.Stat(rec.StoredPath); err != nil {
		s.logger.Error("stored artifact missing on disk", "file", filename, "path", rec.StoredPath, "error", err)
		return index.Record{}, status.Errorf(codes.NotFound, "stored artifact missing for %q", filename)
	}
	return rec, nil
}
