package queue

import (
	"log/slog"
	"time"
)

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	concurrency  int
	pollInterval time.Duration
	lockTimeout  time.Duration
	jobTimeout   time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// WithConcurrency sets how many jobs the worker runs at once.
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPollInterval sets how often an idle worker looks for due jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLockTimeout sets the job lock lease. The worker renews it while the
// handler runs, so it only bounds how long a crashed worker holds a job.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithJobTimeout bounds a single handler run.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

// WithBackoff sets the retry backoff base and cap.
func WithBackoff(base, limit time.Duration) WorkerOption {
	return func(o *workerOptions) {
		o.backoffBase = base
		o.backoffMax = limit
	}
}

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkerClock overrides time.Now used for retry scheduling.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(o *workerOptions) {
		o.now = now
	}
}

func workerOptionsFromConfig(cfg Config) []WorkerOption {
	return []WorkerOption{
		WithConcurrency(cfg.WorkersPerChannel),
		WithPollInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithJobTimeout(cfg.JobTimeout),
		WithBackoff(cfg.BackoffBase, cfg.BackoffMax),
	}
}
