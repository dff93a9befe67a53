package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Worker runs jobs of a single channel with bounded concurrency.
type Worker struct {
	storage Storage
	channel string
	handler Handler
	id      string

	sem  chan struct{}
	wake chan struct{}
	wg   sync.WaitGroup

	pollInterval time.Duration
	lockTimeout  time.Duration
	jobTimeout   time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewWorker creates a worker for channel.
func NewWorker(storage Storage, channel string, handler Handler, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if channel == "" {
		return nil, ErrChannelRequired
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, channel)
	}

	o := &workerOptions{
		concurrency:  1,
		pollInterval: time.Second,
		lockTimeout:  time.Minute,
		jobTimeout:   5 * time.Minute,
		backoffBase:  5 * time.Second,
		backoffMax:   time.Hour,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	id := channel + "-" + uuid.NewString()
	return &Worker{
		storage:      storage,
		channel:      channel,
		handler:      handler,
		id:           id,
		sem:          make(chan struct{}, o.concurrency),
		wake:         make(chan struct{}, 1),
		pollInterval: o.pollInterval,
		lockTimeout:  o.lockTimeout,
		jobTimeout:   o.jobTimeout,
		backoffBase:  o.backoffBase,
		backoffMax:   o.backoffMax,
		logger:       o.logger.With(logger.Component("queue.worker"), logger.Channel(channel)),
		now:          o.now,
	}, nil
}

// ID returns the lock owner id of this worker.
func (w *Worker) ID() string {
	return w.id
}

// Wake makes an idle worker poll immediately.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run processes jobs until ctx is done, then waits for in-flight jobs.
// It fits errgroup.Go.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		w.logger.LogAttrs(ctx, slog.LevelInfo, "worker started",
			slog.String("worker_id", w.id),
			slog.Int("concurrency", cap(w.sem)),
		)

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			w.fill(ctx)
			select {
			case <-ctx.Done():
				w.wg.Wait()
				w.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "worker stopped",
					slog.String("worker_id", w.id),
				)
				return nil
			case <-ticker.C:
			case <-w.wake:
			}
		}
	}
}

// fill claims jobs until the slots are full or nothing is due.
func (w *Worker) fill(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case w.sem <- struct{}{}:
		default:
			return
		}

		job, err := w.storage.Claim(ctx, w.channel, w.id, w.lockTimeout)
		if err != nil {
			<-w.sem
			if !errors.Is(err, ErrNoJobToClaim) && ctx.Err() == nil {
				w.logger.LogAttrs(ctx, slog.LevelError, "claim job", logger.Error(err))
			}
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() {
				<-w.sem
				w.Wake()
			}()
			w.process(context.WithoutCancel(ctx), job)
		}()
	}
}

// process runs the handler and records the outcome. The handler context is
// detached from shutdown so in-flight jobs can finish within the job timeout.
func (w *Worker) process(ctx context.Context, job *Job) {
	start := w.now()
	hctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	stop := w.keepLock(hctx, job.ID)
	err := w.safeHandle(hctx, *job)
	stop()

	attrs := []slog.Attr{
		logger.JobID(job.ID),
		slog.String("job_name", job.Name),
		slog.String("tier", job.Tier.String()),
		logger.Attempt(job.Attempts),
		logger.Duration(w.now().Sub(start)),
	}

	switch {
	case err == nil:
		if cerr := w.storage.Complete(ctx, job.ID, w.id); cerr != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "complete job", append(attrs, logger.Error(cerr))...)
			return
		}
		w.logger.LogAttrs(ctx, slog.LevelDebug, "job completed", attrs...)

	case IsPermanent(err) || job.Attempts >= job.MaxAttempts:
		if ferr := w.storage.Fail(ctx, job.ID, w.id, err.Error()); ferr != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "fail job", append(attrs, logger.Error(ferr))...)
			return
		}
		w.logger.LogAttrs(ctx, slog.LevelWarn, "job failed",
			append(attrs, logger.Error(err), slog.Bool("permanent", IsPermanent(err)))...)

	default:
		retryAt := w.now().Add(Backoff(w.backoffBase, w.backoffMax, job.Attempts))
		if rerr := w.storage.Retry(ctx, job.ID, w.id, err.Error(), retryAt); rerr != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "retry job", append(attrs, logger.Error(rerr))...)
			return
		}
		w.logger.LogAttrs(ctx, slog.LevelInfo, "job will be retried",
			append(attrs, logger.Error(err), slog.Time("retry_at", retryAt))...)
	}
}

// keepLock renews the lock on job id until stop is called, so only a worker
// that died loses its jobs to lock expiry.
func (w *Worker) keepLock(ctx context.Context, id uuid.UUID) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(w.lockTimeout/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.storage.ExtendLock(ctx, id, w.id, w.lockTimeout); err != nil {
					w.logger.LogAttrs(ctx, slog.LevelWarn, "extend job lock", logger.JobID(id), logger.Error(err))
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (w *Worker) safeHandle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", w.channel, r)
		}
	}()
	return w.handler.Handle(ctx, job)
}
