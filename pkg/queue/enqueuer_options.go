package queue

import "time"

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	name        string
	tier        Tier
	delay       *time.Duration
	scheduledAt *time.Time
	maxAttempts int
	batch       bool
}

// WithTier sets the priority tier. The tier's default delay applies unless
// WithDelay or WithScheduledAt is given.
func WithTier(t Tier) EnqueueOption {
	return func(o *enqueueOptions) {
		o.tier = t
	}
}

// WithDelay postpones the job by d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d >= 0 {
			o.delay = &d
		}
	}
}

// WithScheduledAt sets an absolute not-before time.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &t
	}
}

// WithBatchDelay postpones the job by the configured batch delay so several
// low priority deliveries can go out together.
func WithBatchDelay() EnqueueOption {
	return func(o *enqueueOptions) {
		o.batch = true
	}
}

// WithMaxAttempts overrides the attempt ceiling for this job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithName labels the job. Routers dispatch on it; it defaults to the
// payload type.
func WithName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.name = name
	}
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithConfig replaces the default queue configuration.
func WithConfig(cfg Config) EnqueuerOption {
	return func(e *Enqueuer) {
		e.cfg = cfg
	}
}

// WithNotify registers a callback invoked with the channel after each
// successful enqueue, used to wake idle workers.
func WithNotify(fn func(channel string)) EnqueuerOption {
	return func(e *Enqueuer) {
		e.notify = fn
	}
}

// WithEnqueuerClock overrides time.Now.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) {
		e.now = now
	}
}
