package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merbantech/ocr-indexer/constants"
)

func terminalRecord(name string, status constants.DocStatus) Record {
	now := time.Now().UTC()
	return Record{
		OriginalFilename:   name,
		NormalizedFilename: name,
		Status:             status,
		ExtractedFields:    map[string]string{"name": "John Doe"},
		CreatedAt:          now,
		CompletedAt:        &now,
	}
}

func TestLifecycleTransitions(t *testing.T) {
	idx := New(nil)

	rec := idx.MarkPending("a.pdf", "a")
	require.Equal(t, constants.StatusPending, rec.Status)
	require.False(t, rec.CreatedAt.IsZero())

	idx.MarkProcessing("a.pdf")
	got, ok := idx.Get("a.pdf")
	require.True(t, ok)
	require.Equal(t, constants.StatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)

	idx.Upsert(terminalRecord("a.pdf", constants.StatusFully))
	got, ok = idx.Get("a.pdf")
	require.True(t, ok)
	require.Equal(t, constants.StatusFully, got.Status)
}

func TestMarkProcessingUnknownFileIsNoop(t *testing.T) {
	idx := New(nil)
	idx.MarkProcessing("ghost.pdf")
	_, ok := idx.Get("ghost.pdf")
	require.False(t, ok)
	require.Zero(t, idx.Len())
}

func TestRePendingResetsLifecycle(t *testing.T) {
	idx := New(nil)
	rec := terminalRecord("a.pdf", constants.StatusFailed)
	rec.StoredPath = "/buckets/failed/a.pdf"
	idx.Upsert(rec)

	idx.MarkPending("a.pdf", "a")
	got, _ := idx.Get("a.pdf")
	require.Equal(t, constants.StatusPending, got.Status)
	require.Nil(t, got.CompletedAt)
	require.Empty(t, got.ExtractedFields)
	require.Equal(t, "/buckets/failed/a.pdf", got.StoredPath,
		"prior artifact path must survive the pending reset for eviction")
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	idx := New(nil)
	idx.Upsert(terminalRecord("a.pdf", constants.StatusFully))

	got, _ := idx.Get("a.pdf")
	got.ExtractedFields["name"] = "tampered"

	again, _ := idx.Get("a.pdf")
	require.Equal(t, "John Doe", again.ExtractedFields["name"])
}

func TestListSortedAndFiltered(t *testing.T) {
	idx := New(nil)
	idx.Upsert(terminalRecord("c.pdf", constants.StatusFully))
	idx.Upsert(terminalRecord("a.pdf", constants.StatusFailed))
	idx.Upsert(terminalRecord("b.pdf", constants.StatusFully))

	all := idx.List(nil)
	require.Len(t, all, 3)
	require.Equal(t, "a.pdf", all[0].OriginalFilename)
	require.Equal(t, "c.pdf", all[2].OriginalFilename)

	fully := constants.StatusFully
	filtered := idx.List(&fully)
	require.Len(t, filtered, 2)
	for _, r := range filtered {
		require.Equal(t, constants.StatusFully, r.Status)
	}
}

func TestSearch(t *testing.T) {
	idx := New(nil)
	idx.Upsert(terminalRecord("Invoice March.pdf", constants.StatusFully))
	idx.Upsert(terminalRecord("invoice_april.pdf", constants.StatusFailed))
	idx.Upsert(terminalRecord("receipt.pdf", constants.StatusFully))

	hits := idx.Search("INVOICE")
	require.Equal(t, []string{"Invoice March.pdf", "invoice_april.pdf"}, hits)

	require.Nil(t, idx.Search(""))
	require.Nil(t, idx.Search("   "))
	require.Empty(t, idx.Search("zzz"))
}

func TestStats(t *testing.T) {
	idx := New(nil)
	stats := idx.Stats()
	require.Equal(t, 0, stats["total"])
	require.Contains(t, stats, string(constants.StatusPending))
	require.Contains(t, stats, string(constants.StatusFailed))

	idx.MarkPending("a.pdf", "a")
	idx.Upsert(terminalRecord("b.pdf", constants.StatusFully))
	idx.Upsert(terminalRecord("c.pdf", constants.StatusFully))

	stats = idx.Stats()
	require.Equal(t, 3, stats["total"])
	require.Equal(t, 1, stats[string(constants.StatusPending)])
	require.Equal(t, 2, stats[string(constants.StatusFully)])
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := New(nil)
	idx.Upsert(terminalRecord("a.pdf", constants.StatusFully))
	idx.Upsert(terminalRecord("b.pdf", constants.StatusPartially))
	idx.MarkPending("c.pdf", "c")

	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	require.NoError(t, idx.Snapshot(path))

	restored := New(nil)
	n, err := restored.Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got, ok := restored.Get("a.pdf")
	require.True(t, ok)
	require.Equal(t, constants.StatusFully, got.Status)
	require.Equal(t, "John Doe", got.ExtractedFields["name"])
	require.Equal(t, idx.Stats(), restored.Stats())
}

func TestLoadMissingSnapshotIsCleanStart(t *testing.T) {
	idx := New(nil)
	n, err := idx.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, idx.Len())
}

func TestLoadRejectsMalformedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	idx := New(nil)
	idx.Upsert(terminalRecord("keep.pdf", constants.StatusFully))
	_, err := idx.Load(path)
	require.Error(t, err)
	_, ok := idx.Get("keep.pdf")
	require.True(t, ok, "failed load must leave the index untouched")
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown status": `{"a.pdf": {"original_filename": "a.pdf", "status": "done", "created_at": "2026-01-01T00:00:00Z"}}`,
		"missing status": `{"a.pdf": {"original_filename": "a.pdf", "created_at": "2026-01-01T00:00:00Z"}}`,
		"empty filename": `{"a.pdf": {"original_filename": "", "status": "failed", "created_at": "2026-01-01T00:00:00Z"}}`,
		"negative size":  `{"a.pdf": {"original_filename": "a.pdf", "status": "failed", "created_at": "2026-01-01T00:00:00Z", "size_bytes": -1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snapshot.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := New(nil).Load(path)
			require.Error(t, err)
		})
	}
}

func TestSnapshotIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	idx := New(nil)
	idx.Upsert(terminalRecord("a.pdf", constants.StatusFully))
	require.NoError(t, idx.Snapshot(path))
	require.NoError(t, idx.Snapshot(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}
