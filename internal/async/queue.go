package async

import (
	"context"
	"time"

	"github.com/merbantech/ocr-indexer/internal/index"
)

// Job is one queued file. SrcPath points into the scan directory; the
// original filename is the index key.
type Job struct {
	Original    string
	SrcPath     string
	TraceID     string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Pipeline is what the workers drive; satisfied by *pipeline.Processor.
type Pipeline interface {
	Process(ctx context.Context, srcPath, original string) (index.Record, error)
}
