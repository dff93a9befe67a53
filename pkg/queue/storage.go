package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists jobs. Claim must be atomic: a job is handed to at most one
// worker until its lock expires.
type Storage interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// Claim locks the next eligible job on channel for workerID, or returns
	// ErrNoJobToClaim. Jobs whose lock expired are eligible again.
	Claim(ctx context.Context, channel, workerID string, lock time.Duration) (*Job, error)

	// Complete, Retry and Fail return ErrLockLost when workerID no longer
	// holds the job.
	Complete(ctx context.Context, id uuid.UUID, workerID string) error
	Retry(ctx context.Context, id uuid.UUID, workerID, errMsg string, at time.Time) error
	Fail(ctx context.Context, id uuid.UUID, workerID, errMsg string) error

	ExtendLock(ctx context.Context, id uuid.UUID, workerID string, d time.Duration) error

	// Cancel removes a queued job whose scheduled time is still ahead.
	Cancel(ctx context.Context, id uuid.UUID) error

	// HasPending reports whether a queued or active job with name exists on channel.
	HasPending(ctx context.Context, channel, name string) (bool, error)

	Stats(ctx context.Context, channel string) (Stats, error)

	// Failed lists retained terminal failures on channel, newest first.
	Failed(ctx context.Context, channel string) ([]Job, error)
}
