package queue

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// MaintenanceChannel is the default channel of periodic tasks.
const MaintenanceChannel = "maintenance"

// Scheduler enqueues periodic tasks such as the retention purge and the push
// subscription sweep. A task is not enqueued again while a previous run is
// still pending.
type Scheduler struct {
	enqueuer *Enqueuer
	storage  Storage
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	tasks map[string]*scheduledTask
}

type scheduledTask struct {
	name     string
	schedule Schedule
	channel  string
	tier     Tier
	next     time.Time
}

// taskPayload is the body of periodic jobs.
type taskPayload struct {
	Task string    `json:"task"`
	Due  time.Time `json:"due"`
}

// NewScheduler creates a scheduler that enqueues through enqueuer and checks
// pending runs in storage.
func NewScheduler(enqueuer *Enqueuer, storage Storage, opts ...SchedulerOption) (*Scheduler, error) {
	if enqueuer == nil || storage == nil {
		return nil, ErrStorageNil
	}
	s := &Scheduler{
		enqueuer: enqueuer,
		storage:  storage,
		interval: 30 * time.Second,
		logger:   slog.Default(),
		now:      time.Now,
		tasks:    make(map[string]*scheduledTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("queue.scheduler"))
	return s, nil
}

// AddTask registers a periodic task. Its first run is due at the schedule's
// next time after now.
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...TaskOption) error {
	if schedule == nil {
		return ErrInvalidSchedule
	}
	t := &scheduledTask{
		name:     name,
		schedule: schedule,
		channel:  MaintenanceChannel,
		tier:     TierLow,
	}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}
	t.next = schedule.Next(s.now())
	s.tasks[name] = t

	s.logger.Info("registered periodic task",
		slog.String("task", name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", t.next),
	)
	return nil
}

// Tasks lists registered task names, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run checks due tasks every interval until ctx is done. It fits errgroup.Go.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		s.mu.Lock()
		n := len(s.tasks)
		s.mu.Unlock()
		if n == 0 {
			return ErrSchedulerNotConfigured
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.Tick(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

// Tick enqueues every task whose next run has arrived.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*scheduledTask
	for _, t := range s.tasks {
		if !t.next.After(now) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if err := s.enqueue(ctx, t, now); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "schedule periodic task",
				slog.String("task", t.name),
				logger.Error(err),
			)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, t *scheduledTask, now time.Time) error {
	pending, err := s.storage.HasPending(ctx, t.channel, t.name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	due := t.next
	// Skip missed runs so a long outage yields one catch-up run.
	next := t.schedule.Next(due)
	for !next.After(now) {
		next = t.schedule.Next(next)
	}
	t.next = next
	s.mu.Unlock()

	if pending {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "periodic task still pending", slog.String("task", t.name))
		return nil
	}

	_, err = s.enqueuer.Enqueue(ctx, t.channel, taskPayload{Task: t.name, Due: due},
		WithName(t.name),
		WithTier(t.tier),
		WithDelay(0),
	)
	return err
}
