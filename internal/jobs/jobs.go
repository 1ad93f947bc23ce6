// Package jobs runs receipt processing in the background.
package jobs

import (
	"context"
	"time"
)

// JobStatus is the outcome of one attempt.
type JobStatus string

const (
	JobStatusCompleted JobStatus = "completed"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusFailed    JobStatus = "failed"
)

// ProcessReceiptJob asks a worker to extract items from an uploaded receipt.
type ProcessReceiptJob struct {
	JobID     string
	ReceiptID string

	// Attempt counts from 1.
	Attempt    int
	MaxRetries int
	CreatedAt  time.Time
}

// LastAttempt reports whether a failure of this attempt is final.
func (j *ProcessReceiptJob) LastAttempt() bool {
	return j.Attempt > j.MaxRetries
}

// Handler processes a job. A non-nil error schedules a retry unless the
// attempt was the last one.
type Handler func(ctx context.Context, job *ProcessReceiptJob) error

// Publisher enqueues jobs.
type Publisher interface {
	PublishProcessReceipt(ctx context.Context, receiptID string) error
}
