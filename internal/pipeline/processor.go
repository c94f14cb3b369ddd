// Package pipeline drives a single file through extraction, parsing,
// classification and materialization, finishing with the terminal index
// update. Both execution modes call the same Process; only the calling
// convention differs.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/merbantech/ocr-indexer/constants"
	"github.com/merbantech/ocr-indexer/internal/classify"
	"github.com/merbantech/ocr-indexer/internal/extract"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/parse"
	"github.com/merbantech/ocr-indexer/internal/store"
)

type Processor struct {
	logger     *slog.Logger
	extractor  extract.TextExtractor
	parser     *parse.Parser
	mat        *store.Materializer
	idx        *index.Index
	ocrTimeout time.Duration

	// per-filename serialization: concurrent workers may process different
	// files freely, but two runs for the same filename must not interleave.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProcessor(logger *slog.Logger, ex extract.TextExtractor, p *parse.Parser, m *store.Materializer, idx *index.Index, ocrTimeout time.Duration) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if ocrTimeout <= 0 {
		ocrTimeout = 2 * time.Minute
	}
	return &Processor{
		logger:     logger,
		extractor:  ex,
		parser:     p,
		mat:        m,
		idx:        idx,
		ocrTimeout: ocrTimeout,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (p *Processor) lockFor(original string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lk, ok := p.locks[original]
	if !ok {
		lk = &sync.Mutex{}
		p.locks[original] = lk
	}
	return lk
}

// Process runs the full pipeline for one file and returns its terminal
// record. Extraction and materialization failures are recovered into a
// failed record, never propagated; the returned error is reserved for a
// cancelled context before work starts.
func (p *Processor) Process(ctx context.Context, srcPath, original string) (index.Record, error) {
	if err := ctx.Err(); err != nil {
		return index.Record{}, err
	}

	lk := p.lockFor(original)
	lk.Lock()
	defer lk.Unlock()

	prior, hadPrior := p.idx.Get(original)
	if !hadPrior {
		p.idx.MarkPending(original, store.NormalizeFilename(original))
	}
	p.idx.MarkProcessing(original)
	p.logger.Info("pipeline.start", "file", original)

	if _, err := os.Stat(srcPath); err != nil {
		if hadPrior && prior.StoredPath != "" {
			if rerr := p.mat.Remove(prior.StoredPath); rerr != nil {
				p.logger.Warn("pipeline.evict.failed", "file", original, "path", prior.StoredPath, "error", rerr)
			}
		}
		rec := p.complete(original, parse.Fields{}, constants.StatusFailed,
			"source file unavailable", err.Error(), store.Result{})
		p.logger.Error("pipeline.source.missing", "file", original, "error", err)
		return rec, nil
	}

	var (
		fields      parse.Fields
		status      constants.DocStatus
		reason      string
		errDetail   string
		extractedIn time.Duration
	)

	ectx, cancel := context.WithTimeout(ctx, p.ocrTimeout)
	res, err := p.extractor.Extract(ectx, srcPath)
	cancel()
	extractedIn = res.Duration

	if err != nil {
		status, reason = constants.StatusFailed, "text extraction failed"
		errDetail = err.Error()
		p.logger.Error("pipeline.extract.failed", "file", original, "error", err)
	} else {
		fields = p.parser.Parse(res.Text)
		status, reason = classify.Outcome(fields)
		p.logger.Info("pipeline.extract.ok",
			"file", original,
			"method", res.Method,
			"pages", res.Pages,
			"duration_ms", extractedIn.Milliseconds(),
		)
	}

	// Evict the previous artifact before writing the new one so a record
	// never points at two buckets and a re-upload fully supersedes its
	// predecessor.
	if hadPrior && prior.StoredPath != "" {
		if rerr := p.mat.Remove(prior.StoredPath); rerr != nil {
			p.logger.Warn("pipeline.evict.failed", "file", original, "path", prior.StoredPath, "error", rerr)
		}
	}

	matRes, merr := p.mat.Materialize(ctx, srcPath, store.StoredName(original), status)
	if merr != nil {
		status, reason = constants.StatusFailed, "materialization failed"
		errDetail = merr.Error()
		p.logger.Error("pipeline.materialize.failed", "file", original, "error", merr)
		if fallback, ferr := p.mat.MoveToFailed(srcPath, store.StoredBase(original)); ferr == nil {
			matRes = fallback
		} else {
			p.logger.Error("pipeline.materialize.fallback_failed", "file", original, "error", ferr)
			matRes = store.Result{}
		}
	}

	rec := p.complete(original, fields, status, reason, errDetail, matRes)
	p.logger.Info("pipeline.done", "file", original, "status", string(status))
	return rec, nil
}

// complete builds the terminal record and upserts it as the pipeline's final
// step; the index never shows a terminal status before the artifact exists.
func (p *Processor) complete(original string, fields parse.Fields, status constants.DocStatus, reason, errDetail string, mat store.Result) index.Record {
	now := time.Now().UTC()
	cur, _ := p.idx.Get(original)
	rec := index.Record{
		OriginalFilename:     original,
		NormalizedFilename:   store.NormalizeFilename(original),
		Status:               status,
		ExtractedFields:      fields.Map(),
		ClassificationReason: reason,
		StoredPath:           mat.StoredPath,
		SizeBytes:            mat.SizeBytes,
		Pages:                mat.Pages,
		ErrorDetail:          errDetail,
		CreatedAt:            cur.CreatedAt,
		StartedAt:            cur.StartedAt,
		CompletedAt:          &now,
	}
	if !mat.ModifiedAt.IsZero() {
		m := mat.ModifiedAt
		rec.ModifiedAt = &m
	}
	p.idx.Upsert(rec)
	return rec
}
