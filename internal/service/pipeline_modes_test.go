package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merbantech/ocr-indexer/constants"
	"github.com/merbantech/ocr-indexer/internal/async"
	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/extract"
	"github.com/merbantech/ocr-indexer/internal/index"
	"github.com/merbantech/ocr-indexer/internal/parse"
	"github.com/merbantech/ocr-indexer/internal/pipeline"
	"github.com/merbantech/ocr-indexer/internal/store"
)

// stubText serves fixed extracted text, standing in for the OCR binaries.
type stubText struct {
	text string
}

func (s *stubText) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	return extract.TextExtractionResult{Text: s.text, Pages: 1, Method: "pdf-ocr"}, nil
}

// newPipelineService wires the real processor behind the facade; queue is
// nil for immediate mode.
func newPipelineService(t *testing.T, mode string, ex extract.TextExtractor) (*Service, *index.Index, func()) {
	t.Helper()
	root := t.TempDir()
	mat, err := store.NewMaterializer(store.BucketDirs{
		FullyIndexed:     filepath.Join(root, "fully_indexed"),
		PartiallyIndexed: filepath.Join(root, "partially_indexed"),
		Failed:           filepath.Join(root, "failed"),
	}, nil)
	require.NoError(t, err)

	idx := index.New(nil)
	proc := pipeline.NewProcessor(nil, ex, parse.NewParser(nil), mat, idx, time.Minute)

	var queue async.Queue
	stop := func() {}
	if mode == config.ModeAsync {
		pq := async.NewPipelineQueue(proc, nil)
		queue = pq
		stop = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			pq.Shutdown(ctx)
		}
	}

	svc, err := NewService(mode, filepath.Join(root, "scan"), idx, proc, queue, nil)
	require.NoError(t, err)
	return svc, idx, stop
}

func awaitTerminal(t *testing.T, idx *index.Index, filename string) index.Record {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := idx.Get(filename)
		return ok && rec.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "no terminal record for %s", filename)
	rec, _ := idx.Get(filename)
	return rec
}

func TestReuploadEvictsOldArtifact(t *testing.T) {
	ex := &stubText{text: "Name: John Doe\nAccount: 1234567890"}
	svc, _, _ := newPipelineService(t, config.ModeImmediate, ex)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "doc.pdf", []byte("first scan"))
	require.NoError(t, err)
	require.Equal(t, constants.StatusFully, first.Status)
	_, serr := os.Stat(first.StoredPath)
	require.NoError(t, serr)

	ex.text = "no identity fields in this one"
	second, err := svc.Upload(ctx, "doc.pdf", []byte("second scan"))
	require.NoError(t, err)
	require.Equal(t, constants.StatusFailed, second.Status)

	_, serr = os.Stat(first.StoredPath)
	require.True(t, os.IsNotExist(serr), "old artifact must leave its old bucket on re-upload")
	_, serr = os.Stat(second.StoredPath)
	require.NoError(t, serr)
}

func TestReuploadEvictsOldArtifactAsync(t *testing.T) {
	ex := &stubText{text: "Name: John Doe\nAccount: 1234567890"}
	svc, idx, stop := newPipelineService(t, config.ModeAsync, ex)
	defer stop()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.pdf", []byte("first scan"))
	require.NoError(t, err)
	first := awaitTerminal(t, idx, "doc.pdf")
	require.Equal(t, constants.StatusFully, first.Status)

	ex.text = "nothing useful"
	_, err = svc.Upload(ctx, "doc.pdf", []byte("second scan"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, ok := idx.Get("doc.pdf")
		return ok && rec.Status == constants.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	_, serr := os.Stat(first.StoredPath)
	require.True(t, os.IsNotExist(serr), "old artifact must leave its old bucket on re-upload")
}

func TestInlineAndAsyncModesAgree(t *testing.T) {
	cases := map[string]struct {
		text string
		want constants.DocStatus
	}{
		"both fields":    {"Name: John Doe\nAccount: 1234567890", constants.StatusFully},
		"name only":      {"Name: John Doe", constants.StatusPartially},
		"account only":   {"Account Number: 1234567890", constants.StatusPartially},
		"nothing usable": {"illegible scan noise", constants.StatusFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			inlineSvc, _, _ := newPipelineService(t, config.ModeImmediate, &stubText{text: tc.text})
			inline, err := inlineSvc.Upload(context.Background(), "doc.pdf", []byte("scan"))
			require.NoError(t, err)

			asyncSvc, asyncIdx, stop := newPipelineService(t, config.ModeAsync, &stubText{text: tc.text})
			defer stop()
			_, err = asyncSvc.Upload(context.Background(), "doc.pdf", []byte("scan"))
			require.NoError(t, err)
			queued := awaitTerminal(t, asyncIdx, "doc.pdf")

			require.Equal(t, tc.want, inline.Status)
			require.Equal(t, inline.Status, queued.Status)
			require.Equal(t, inline.ExtractedFields, queued.ExtractedFields)
			require.Equal(t, inline.ClassificationReason, queued.ClassificationReason)
		})
	}
}
