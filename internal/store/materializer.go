package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/merbantech/ocr-indexer/constants"
)

// BucketDirs holds the three terminal storage directories.
type BucketDirs struct {
	FullyIndexed     string
	PartiallyIndexed string
	Failed           string
}

// For maps a terminal status onto its directory. Anything non-terminal lands
// in the failed directory; callers only pass terminal statuses.
func (d BucketDirs) For(s constants.DocStatus) string {
	switch s {
	case constants.StatusFully:
		return d.FullyIndexed
	case constants.StatusPartially:
		return d.PartiallyIndexed
	default:
		return d.Failed
	}
}

// All returns the bucket directories in listing order.
func (d BucketDirs) All() []string {
	return []string{d.FullyIndexed, d.PartiallyIndexed, d.Failed}
}

// MaterializationError marks a storage or conversion failure. The
// orchestrator folds it into a failed record with the cause preserved.
type MaterializationError struct {
	Path string
	Err  error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize %s: %v", e.Path, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// Result describes the stored artifact.
type Result struct {
	StoredPath string
	SizeBytes  int64
	ModifiedAt time.Time
	Pages      int
}

// Materializer writes canonical artifacts into bucket directories,
// converting image originals to PDF so every bucket holds a uniform type.
type Materializer struct {
	dirs   BucketDirs
	conf   *model.Configuration
	logger *slog.Logger
}

func NewMaterializer(dirs BucketDirs, logger *slog.Logger) (*Materializer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range dirs.All() {
		if d == "" {
			return nil, fmt.Errorf("bucket directory not configured: %+v", dirs)
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir %s: %w", d, err)
		}
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Materializer{dirs: dirs, conf: conf, logger: logger}, nil
}

// Materialize writes the canonical artifact for srcPath into the bucket
// matching status under storedName, overwriting any previous artifact of the
// same name. The source file is consumed on success.
func (m *Materializer) Materialize(ctx context.Context, srcPath, storedName string, status constants.DocStatus) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &MaterializationError{Path: srcPath, Err: err}
	}
	dest := filepath.Join(m.dirs.For(status), storedName)

	var err error
	if constants.MapExtToFormat(filepath.Ext(srcPath)) == constants.IMAGE {
		err = m.convertImageToPDF(srcPath, dest)
	} else {
		err = moveFile(srcPath, dest)
	}
	if err != nil {
		return Result{}, &MaterializationError{Path: srcPath, Err: err}
	}

	st, err := os.Stat(dest)
	if err != nil {
		return Result{}, &MaterializationError{Path: dest, Err: err}
	}
	res := Result{
		StoredPath: dest,
		SizeBytes:  st.Size(),
		ModifiedAt: st.ModTime().UTC(),
	}
	if n, perr := api.PageCountFile(dest); perr == nil {
		res.Pages = n
	}
	m.logger.Debug("materialized artifact", "dest", dest, "status", string(status), "bytes", res.SizeBytes)
	return res, nil
}

// MoveToFailed places the raw original into the failed bucket without
// conversion. Fallback for conversion failures; the raw file keeps its
// original extension since there is no PDF to store.
func (m *Materializer) MoveToFailed(srcPath, normalizedBase string) (Result, error) {
	dest := filepath.Join(m.dirs.Failed, normalizedBase+filepath.Ext(srcPath))
	if err := moveFile(srcPath, dest); err != nil {
		return Result{}, &MaterializationError{Path: srcPath, Err: err}
	}
	st, err := os.Stat(dest)
	if err != nil {
		return Result{}, &MaterializationError{Path: dest, Err: err}
	}
	return Result{StoredPath: dest, SizeBytes: st.Size(), ModifiedAt: st.ModTime().UTC()}, nil
}

// Remove deletes a previously stored artifact. Missing files are fine; the
// caller is evicting whatever an older record left behind.
func (m *Materializer) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Materializer) convertImageToPDF(src, dest string) error {
	tmp := dest + ".tmp"
	if err := api.ImportImagesFile([]string{src}, tmp, nil, m.conf); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("image to pdf: %w", err)
	}
	if err := api.ValidateFile(tmp, m.conf); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("converted pdf invalid: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// moveFile renames when possible and falls back to copy+rename across
// filesystems; the destination appears atomically either way.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".mv-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Remove(src)
}
