package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned when publishing after Stop.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an in-memory job queue backed by a buffered channel.
// It is safe for concurrent use and suited to a single-instance deployment.
type Queue struct {
	jobChan   chan *ProcessReceiptJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool

	workers    int
	maxRetries int
	backoff    time.Duration
	observe    func(status JobStatus, took time.Duration)
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackoff sets the base retry delay. Attempt n waits n x d.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// WithObserver registers a callback invoked after every attempt.
func WithObserver(fn func(status JobStatus, took time.Duration)) Option {
	return func(q *Queue) { q.observe = fn }
}

// NewQueue creates a queue. bufferSize bounds how many jobs can wait before
// Publish blocks.
func NewQueue(bufferSize, workers, maxRetries int, opts ...Option) *Queue {
	q := &Queue{
		jobChan:    make(chan *ProcessReceiptJob, bufferSize),
		closeChan:  make(chan struct{}),
		workers:    max(workers, 1),
		maxRetries: max(maxRetries, 0),
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishProcessReceipt enqueues processing of receiptID.
func (q *Queue) PublishProcessReceipt(ctx context.Context, receiptID string) error {
	return q.publish(ctx, &ProcessReceiptJob{
		JobID:      uuid.New().String(),
		ReceiptID:  receiptID,
		Attempt:    1,
		MaxRetries: q.maxRetries,
		CreatedAt:  time.Now(),
	})
}

func (q *Queue) publish(ctx context.Context, job *ProcessReceiptJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	// jobChan is never closed, so sending after Stop cannot panic.
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	slog.Info("Job queue started", "workers", q.workers, "max_retries", q.maxRetries)
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.process(ctx, job, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *ProcessReceiptJob, handler Handler) {
	start := time.Now()
	err := q.run(ctx, job, handler)

	status := JobStatusCompleted
	switch {
	case err == nil:
		slog.Debug("Job completed", "job_id", job.JobID, "receipt_id", job.ReceiptID, "attempt", job.Attempt)
	case job.LastAttempt():
		status = JobStatusFailed
		slog.Error("Job failed", "job_id", job.JobID, "receipt_id", job.ReceiptID, "attempt", job.Attempt, "error", err)
	default:
		status = JobStatusRetrying
		backoff := time.Duration(job.Attempt) * q.backoff
		slog.Warn("Job failed, retrying", "job_id", job.JobID, "receipt_id", job.ReceiptID,
			"attempt", job.Attempt, "backoff", backoff, "error", err)

		next := *job
		next.Attempt++
		time.AfterFunc(backoff, func() {
			if err := q.publish(ctx, &next); err != nil {
				slog.Warn("Retry dropped", "job_id", next.JobID, "receipt_id", next.ReceiptID, "error", err)
			}
		})
	}

	if q.observe != nil {
		q.observe(status, time.Since(start))
	}
}

// run calls handler, turning a panic into an error.
func (q *Queue) run(ctx context.Context, job *ProcessReceiptJob, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Stop stops accepting jobs and waits for in-flight jobs to finish or ctx
// to expire. Queued jobs and pending retries are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Publisher = (*Queue)(nil)
