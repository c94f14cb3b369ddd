package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// snapshotSchema guards restores: a truncated or foreign file must not be
// loaded into the live index.
const snapshotSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["original_filename", "status", "created_at"],
    "properties": {
      "original_filename": {"type": "string", "minLength": 1},
      "normalized_filename": {"type": "string"},
      "status": {
        "enum": ["pending", "processing", "fully_indexed", "partially_indexed", "failed"]
      },
      "extracted_fields": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      },
      "classification_reason": {"type": "string"},
      "stored_path": {"type": "string"},
      "size_bytes": {"type": "integer", "minimum": 0},
      "pages": {"type": "integer", "minimum": 0},
      "error_detail": {"type": "string"}
    }
  }
}`

var compiledSnapshotSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("snapshot.json", bytes.NewReader([]byte(snapshotSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile("snapshot.json")
}

// Snapshot serializes the full index to path, atomically (tmp + rename).
func (i *Index) Snapshot(path string) error {
	docs := i.view()
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp snapshot: %w", err)
	}
	i.logger.Debug("snapshot written", "path", path, "records", len(docs))
	return nil
}

// Load restores the index from a snapshot file. A missing file is a clean
// empty start; a malformed or schema-violating file is an error and leaves
// the index untouched.
func (i *Index) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := compiledSnapshotSchema.Validate(raw); err != nil {
		return 0, fmt.Errorf("snapshot does not match schema: %w", err)
	}

	var docs map[string]Record
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	i.replace(docs)
	return len(docs), nil
}

// Snapshotter periodically persists the index. Failures are logged and
// retried on the next tick; they never interrupt serving.
type Snapshotter struct {
	idx      *Index
	path     string
	interval time.Duration
}

func NewSnapshotter(idx *Index, path string, interval time.Duration) *Snapshotter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Snapshotter{idx: idx, path: path, interval: interval}
}

// Run loops until ctx is cancelled, then writes one final snapshot.
func (s *Snapshotter) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.idx.Snapshot(s.path); err != nil {
				s.idx.logger.Warn("final snapshot failed", "path", s.path, "error", err)
			}
			return
		case <-t.C:
			if err := s.idx.Snapshot(s.path); err != nil {
				s.idx.logger.Warn("snapshot failed", "path", s.path, "error", err)
			}
		}
	}
}
