package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-process Storage for development and tests.
// Expired locks are reclaimed lazily on Claim.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	queued    map[string][]uuid.UUID // channel -> queued ids
	active    map[string][]uuid.UUID // channel -> active ids
	completed map[string][]uuid.UUID // channel -> retained ids, oldest first
	failed    map[string][]uuid.UUID // channel -> retained ids, oldest first
	claims    map[string]int

	seq             int64
	keepCompleted   int
	keepFailed      int
	starvationEvery int
	now             func() time.Time
}

// MemoryOption configures a MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithRetention bounds how many completed and failed jobs are kept per channel.
func WithRetention(completed, failed int) MemoryOption {
	return func(s *MemoryStorage) {
		s.keepCompleted = completed
		s.keepFailed = failed
	}
}

// WithStarvationEvery makes every n-th claim on a channel take the oldest
// eligible job regardless of tier. Zero disables it.
func WithStarvationEvery(n int) MemoryOption {
	return func(s *MemoryStorage) {
		s.starvationEvery = n
	}
}

// WithStorageClock overrides time.Now.
func WithStorageClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		s.now = now
	}
}

// NewMemoryStorage creates an empty storage with the default retention and aging.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		jobs:            make(map[uuid.UUID]*Job),
		queued:          make(map[string][]uuid.UUID),
		active:          make(map[string][]uuid.UUID),
		completed:       make(map[string][]uuid.UUID),
		failed:          make(map[string][]uuid.UUID),
		claims:          make(map[string]int),
		keepCompleted:   50,
		keepFailed:      100,
		starvationEvery: 5,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemoryStorageFromConfig applies the retention and aging settings of cfg.
func NewMemoryStorageFromConfig(cfg Config, opts ...MemoryOption) *MemoryStorage {
	base := []MemoryOption{
		WithRetention(cfg.KeepCompleted, cfg.KeepFailed),
		WithStarvationEvery(cfg.StarvationEvery),
	}
	return NewMemoryStorage(append(base, opts...)...)
}

func (s *MemoryStorage) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}
	if job.Channel == "" {
		return ErrChannelRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	s.seq++
	job.Seq = s.seq
	job.Status = JobStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = job.CreatedAt
	}

	c := *job
	s.jobs[job.ID] = &c
	s.queued[job.Channel] = append(s.queued[job.Channel], job.ID)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	c := *job
	return &c, nil
}

func (s *MemoryStorage) Claim(ctx context.Context, channel, workerID string, lock time.Duration) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.reclaimExpired(channel, now)

	var best, oldest *Job
	for _, id := range s.queued[channel] {
		job := s.jobs[id]
		if job.ScheduledAt.After(now) {
			continue
		}
		if oldest == nil || job.Seq < oldest.Seq {
			oldest = job
		}
		if best == nil || job.Tier > best.Tier || (job.Tier == best.Tier && job.Seq < best.Seq) {
			best = job
		}
	}
	if best == nil {
		return nil, ErrNoJobToClaim
	}

	s.claims[channel]++
	if s.starvationEvery > 0 && s.claims[channel]%s.starvationEvery == 0 {
		best = oldest
	}

	until := now.Add(lock)
	best.Status = JobStatusActive
	best.Attempts++
	best.LockedUntil = &until
	best.LockedBy = workerID

	s.queued[channel] = remove(s.queued[channel], best.ID)
	s.active[channel] = append(s.active[channel], best.ID)

	c := *best
	return &c, nil
}

func (s *MemoryStorage) Complete(ctx context.Context, id uuid.UUID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.held(id, workerID)
	if err != nil {
		return err
	}
	now := s.now()
	job.Status = JobStatusCompleted
	job.FinishedAt = &now
	job.LastError = ""
	s.release(job)

	s.completed[job.Channel] = s.retain(append(s.completed[job.Channel], id), s.keepCompleted)
	return nil
}

func (s *MemoryStorage) Retry(ctx context.Context, id uuid.UUID, workerID, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.held(id, workerID)
	if err != nil {
		return err
	}
	job.Status = JobStatusQueued
	job.LastError = errMsg
	job.ScheduledAt = at
	s.release(job)

	s.queued[job.Channel] = append(s.queued[job.Channel], id)
	return nil
}

func (s *MemoryStorage) Fail(ctx context.Context, id uuid.UUID, workerID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.held(id, workerID)
	if err != nil {
		return err
	}
	now := s.now()
	job.Status = JobStatusFailed
	job.LastError = errMsg
	job.FinishedAt = &now
	s.release(job)

	s.failed[job.Channel] = s.retain(append(s.failed[job.Channel], id), s.keepFailed)
	return nil
}

func (s *MemoryStorage) ExtendLock(ctx context.Context, id uuid.UUID, workerID string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.held(id, workerID)
	if err != nil {
		return err
	}
	until := s.now().Add(d)
	job.LockedUntil = &until
	return nil
}

func (s *MemoryStorage) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != JobStatusQueued || !job.ScheduledAt.After(s.now()) {
		return ErrJobNotCancellable
	}
	s.queued[job.Channel] = remove(s.queued[job.Channel], id)
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStorage) HasPending(ctx context.Context, channel, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ids := range [][]uuid.UUID{s.queued[channel], s.active[channel]} {
		for _, id := range ids {
			if s.jobs[id].Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStorage) Stats(ctx context.Context, channel string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{
		Active:    len(s.active[channel]),
		Completed: len(s.completed[channel]),
		Failed:    len(s.failed[channel]),
	}
	for _, id := range s.queued[channel] {
		if s.jobs[id].ScheduledAt.After(now) {
			st.Delayed++
		} else {
			st.Queued++
		}
	}
	return st, nil
}

func (s *MemoryStorage) Failed(ctx context.Context, channel string) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.failed[channel]
	out := make([]Job, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, *s.jobs[ids[i]])
	}
	return out, nil
}

// held returns the active job if workerID still owns its lock.
func (s *MemoryStorage) held(id uuid.UUID, workerID string) (*Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != JobStatusActive || job.LockedBy != workerID {
		return nil, ErrLockLost
	}
	return job, nil
}

func (s *MemoryStorage) release(job *Job) {
	job.LockedUntil = nil
	job.LockedBy = ""
	s.active[job.Channel] = remove(s.active[job.Channel], job.ID)
}

// reclaimExpired puts active jobs whose lock ran out back in the queue so
// another worker redelivers them. A job that already used its last attempt
// fails instead.
func (s *MemoryStorage) reclaimExpired(channel string, now time.Time) {
	for _, id := range slices.Clone(s.active[channel]) {
		job := s.jobs[id]
		if job.LockedUntil == nil || !job.LockedUntil.Before(now) {
			continue
		}
		job.LastError = errLockExpired
		s.release(job)
		if job.Attempts >= job.MaxAttempts {
			job.Status = JobStatusFailed
			job.FinishedAt = &now
			s.failed[channel] = s.retain(append(s.failed[channel], id), s.keepFailed)
			continue
		}
		job.Status = JobStatusQueued
		s.queued[channel] = append(s.queued[channel], id)
	}
}

// retain drops the oldest ids beyond limit and forgets their jobs.
func (s *MemoryStorage) retain(ids []uuid.UUID, limit int) []uuid.UUID {
	if limit < 0 || len(ids) <= limit {
		return ids
	}
	drop := len(ids) - limit
	for _, id := range ids[:drop] {
		delete(s.jobs, id)
	}
	return slices.Clone(ids[drop:])
}

func remove(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(ids, func(v uuid.UUID) bool { return v == id })
}
