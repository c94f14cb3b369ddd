package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue once shutdown has begun; callers
// must surface it rather than ack a job that will never run.
var ErrQueueClosed = errors.New("queue closed")

// PipelineQueue is a buffered-channel FIFO consumed by worker goroutines.
// The default single worker preserves strict first-in-first-out completion;
// more workers are safe because the pipeline serializes per filename.
type PipelineQueue struct {
	proc    Pipeline
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and fences sends against channel close: enqueuers
	// hold the read side, Shutdown takes the write side.
	mu     sync.RWMutex
	closed bool
}

type Option func(*PipelineQueue)

func WithWorkers(n int) Option {
	return func(q *PipelineQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *PipelineQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *PipelineQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewPipelineQueue(proc Pipeline, logger *slog.Logger, opts ...Option) *PipelineQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &PipelineQueue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *PipelineQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					rec, err := q.proc.Process(ctx, job.SrcPath, job.Original)
					cancel()

					if err != nil {
						q.logger.Error("processing aborted", "worker_id", workerID, "file", job.Original, "trace_id", job.TraceID, "error", err)
					} else {
						q.logger.Info("processed file",
							"worker_id", workerID,
							"file", job.Original,
							"trace_id", job.TraceID,
							"status", string(rec.Status),
							"queued_for_ms", time.Since(job.SubmittedAt).Milliseconds(),
						)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *PipelineQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "file", job.Original)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "file", job.Original, "trace_id", job.TraceID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "file", job.Original)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *PipelineQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
