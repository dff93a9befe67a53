package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often due tasks are looked for.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchedulerClock overrides time.Now.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// TaskOption configures a periodic task.
type TaskOption func(*scheduledTask)

// OnChannel enqueues the task on channel instead of MaintenanceChannel.
func OnChannel(channel string) TaskOption {
	return func(t *scheduledTask) {
		t.channel = channel
	}
}

// WithTaskTier sets the tier of the enqueued jobs.
func WithTaskTier(tier Tier) TaskOption {
	return func(t *scheduledTask) {
		t.tier = tier
	}
}
