package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Runner abstracts the external OCR binaries so tests can stub them.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out through exec.CommandContext; the context bounds the
// whole invocation, so an extraction timeout kills the child process.
type execRunner struct {
	logger *slog.Logger
}

// tesseract can emit megabytes of box noise on stderr; cap what gets logged.
const maxStderrLog = 8 << 10

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if err != nil {
		r.logger.Error("ocr binary failed",
			"binary", name,
			"args", args,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", stderrPreview(stderr.Bytes()),
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}

	r.logger.Debug("ocr binary finished",
		"binary", name,
		"args", args,
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.Len(),
	)
	return stdout.Bytes(), stderr.Bytes(), nil
}

func stderrPreview(b []byte) string {
	if len(b) <= maxStderrLog {
		return string(b)
	}
	return string(b[:maxStderrLog]) + "...(truncated)"
}
