package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merbantech/ocr-indexer/constants"
)

func testDirs(t *testing.T) BucketDirs {
	t.Helper()
	root := t.TempDir()
	return BucketDirs{
		FullyIndexed:     filepath.Join(root, "fully_indexed"),
		PartiallyIndexed: filepath.Join(root, "partially_indexed"),
		Failed:           filepath.Join(root, "failed"),
	}
}

func writeSrc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewMaterializerCreatesBuckets(t *testing.T) {
	dirs := testDirs(t)
	_, err := NewMaterializer(dirs, nil)
	require.NoError(t, err)
	for _, d := range dirs.All() {
		info, serr := os.Stat(d)
		require.NoError(t, serr)
		require.True(t, info.IsDir())
	}
}

func TestNewMaterializerRejectsEmptyDir(t *testing.T) {
	dirs := testDirs(t)
	dirs.Failed = ""
	_, err := NewMaterializer(dirs, nil)
	require.Error(t, err)
}

func TestBucketDirsFor(t *testing.T) {
	dirs := testDirs(t)
	require.Equal(t, dirs.FullyIndexed, dirs.For(constants.StatusFully))
	require.Equal(t, dirs.PartiallyIndexed, dirs.For(constants.StatusPartially))
	require.Equal(t, dirs.Failed, dirs.For(constants.StatusFailed))
}

func TestMaterializeMovesPDFIntoBucket(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewMaterializer(dirs, nil)
	require.NoError(t, err)

	src := writeSrc(t, "Client Form.pdf", "pdf bytes")
	res, err := m.Materialize(context.Background(), src, "client_form.pdf", constants.StatusFully)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dirs.FullyIndexed, "client_form.pdf"), res.StoredPath)
	require.Equal(t, int64(len("pdf bytes")), res.SizeBytes)
	require.False(t, res.ModifiedAt.IsZero())

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err), "source should be consumed")
	data, err := os.ReadFile(res.StoredPath)
	require.NoError(t, err)
	require.Equal(t, "pdf bytes", string(data))
}

func TestMaterializeOverwritesExistingArtifact(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewMaterializer(dirs, nil)
	require.NoError(t, err)

	first := writeSrc(t, "doc.pdf", "old")
	_, err = m.Materialize(context.Background(), first, "doc.pdf", constants.StatusPartially)
	require.NoError(t, err)

	second := writeSrc(t, "doc.pdf", "new content")
	res, err := m.Materialize(context.Background(), second, "doc.pdf", constants.StatusPartially)
	require.NoError(t, err)

	data, err := os.ReadFile(res.StoredPath)
	require.NoError(t, err)
	require.Equal(t, "new content", string(data))
}

func TestMaterializeMissingSource(t *testing.T) {
	m, err := NewMaterializer(testDirs(t), nil)
	require.NoError(t, err)

	_, err = m.Materialize(context.Background(), "/nonexistent/file.pdf", "file.pdf", constants.StatusFailed)
	require.Error(t, err)
	var merr *MaterializationError
	require.ErrorAs(t, err, &merr)
}

func TestMaterializeCancelledContext(t *testing.T) {
	m, err := NewMaterializer(testDirs(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := writeSrc(t, "doc.pdf", "bytes")
	_, err = m.Materialize(ctx, src, "doc.pdf", constants.StatusFully)
	require.Error(t, err)

	_, serr := os.Stat(src)
	require.NoError(t, serr, "source must survive a cancelled run")
}

func TestMoveToFailedKeepsOriginalExtension(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewMaterializer(dirs, nil)
	require.NoError(t, err)

	src := writeSrc(t, "broken.tiff", "not really a tiff")
	res, err := m.MoveToFailed(src, "broken")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dirs.Failed, "broken.tiff"), res.StoredPath)
}

func TestRemove(t *testing.T) {
	dirs := testDirs(t)
	m, err := NewMaterializer(dirs, nil)
	require.NoError(t, err)

	path := filepath.Join(dirs.Failed, "stale.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, m.Remove(path))
	_, serr := os.Stat(path)
	require.True(t, os.IsNotExist(serr))

	require.NoError(t, m.Remove(path), "removing a missing artifact is not an error")
	require.NoError(t, m.Remove(""))
}
