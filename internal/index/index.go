// Package index holds the in-memory document index: the single source of
// truth for every status, listing and search query. The orchestrator is its
// only writer; snapshots are a best-effort durability aid, never the
// authoritative state.
package index

import (
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/merbantech/ocr-indexer/constants"
)

// Record is the queryable metadata for one uploaded file, keyed by its
// original filename.
type Record struct {
	OriginalFilename     string               `json:"original_filename"`
	NormalizedFilename   string               `json:"normalized_filename"`
	Status               constants.DocStatus  `json:"status"`
	ExtractedFields      map[string]string    `json:"extracted_fields,omitempty"`
	ClassificationReason string               `json:"classification_reason,omitempty"`
	StoredPath           string               `json:"stored_path,omitempty"`
	SizeBytes            int64                `json:"size_bytes,omitempty"`
	ModifiedAt           *time.Time           `json:"modified_at,omitempty"`
	Pages                int                  `json:"pages,omitempty"`
	ErrorDetail          string               `json:"error_detail,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	StartedAt            *time.Time           `json:"started_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
}

func (r Record) clone() Record {
	r.ExtractedFields = maps.Clone(r.ExtractedFields)
	return r
}

// Index is a concurrency-safe map of document records. Readers always see
// fully written records; an in-progress upsert is never observable.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]Record
	logger *slog.Logger
}

func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{docs: make(map[string]Record), logger: logger}
}

// MarkPending creates (or recreates) the record for a fresh upload. A
// re-upload of the same filename restarts the lifecycle from scratch, but
// the prior stored artifact path is carried over so the next pipeline run
// can evict the file from its old bucket.
func (i *Index) MarkPending(original, normalized string) Record {
	rec := Record{
		OriginalFilename:   original,
		NormalizedFilename: normalized,
		Status:             constants.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	i.mu.Lock()
	if prev, ok := i.docs[original]; ok {
		rec.StoredPath = prev.StoredPath
	}
	i.docs[original] = rec
	i.mu.Unlock()
	return rec
}

// MarkProcessing flags the record as picked up by the pipeline.
func (i *Index) MarkProcessing(original string) {
	now := time.Now().UTC()
	i.mu.Lock()
	if rec, ok := i.docs[original]; ok {
		rec.Status = constants.StatusProcessing
		rec.StartedAt = &now
		i.docs[original] = rec
	}
	i.mu.Unlock()
}

// Upsert stores the complete record, replacing any prior one. This is the
// pipeline's final step: by the time it runs the artifact is already durable
// in its bucket directory.
func (i *Index) Upsert(rec Record) {
	i.mu.Lock()
	i.docs[rec.OriginalFilename] = rec.clone()
	i.mu.Unlock()
}

// Get fetches a record by exact original filename.
func (i *Index) Get(original string) (Record, bool) {
	i.mu.RLock()
	rec, ok := i.docs[original]
	i.mu.RUnlock()
	return rec.clone(), ok
}

// List returns record summaries, optionally filtered by status, sorted by
// original filename.
func (i *Index) List(filter *constants.DocStatus) []Record {
	i.mu.RLock()
	out := make([]Record, 0, len(i.docs))
	for _, rec := range i.docs {
		if filter != nil && rec.Status != *filter {
			continue
		}
		out = append(out, rec.clone())
	}
	i.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		return out[a].OriginalFilename < out[b].OriginalFilename
	})
	return out
}

// Search returns original filenames containing the query, case-insensitive,
// sorted.
func (i *Index) Search(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	i.mu.RLock()
	var hits []string
	for name := range i.docs {
		if strings.Contains(strings.ToLower(name), q) {
			hits = append(hits, name)
		}
	}
	i.mu.RUnlock()
	sort.Strings(hits)
	return hits
}

// Stats returns record counts per status plus a total.
func (i *Index) Stats() map[string]int {
	stats := map[string]int{
		string(constants.StatusPending):    0,
		string(constants.StatusProcessing): 0,
		string(constants.StatusFully):      0,
		string(constants.StatusPartially):  0,
		string(constants.StatusFailed):     0,
	}
	i.mu.RLock()
	for _, rec := range i.docs {
		stats[string(rec.Status)]++
	}
	stats["total"] = len(i.docs)
	i.mu.RUnlock()
	return stats
}

// Len reports the number of records.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// view copies the whole map for snapshotting without holding the lock during
// serialization.
func (i *Index) view() map[string]Record {
	i.mu.RLock()
	out := make(map[string]Record, len(i.docs))
	for k, rec := range i.docs {
		out[k] = rec.clone()
	}
	i.mu.RUnlock()
	return out
}

// replace swaps in a restored record set.
func (i *Index) replace(docs map[string]Record) {
	i.mu.Lock()
	i.docs = docs
	i.mu.Unlock()
}
