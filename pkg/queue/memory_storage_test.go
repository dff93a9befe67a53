package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newQueue(t *testing.T, clock *fakeClock, opts ...queue.MemoryOption) (*queue.MemoryStorage, *queue.Enqueuer) {
	t.Helper()
	opts = append([]queue.MemoryOption{queue.WithStorageClock(clock.Now)}, opts...)
	storage := queue.NewMemoryStorage(opts...)
	enq, err := queue.NewEnqueuer(storage, queue.WithEnqueuerClock(clock.Now))
	require.NoError(t, err)
	return storage, enq
}

type msg struct {
	N int `json:"n"`
}

func claimN(t *testing.T, s *queue.MemoryStorage, channel string, n int) []int {
	t.Helper()
	ctx := context.Background()
	var got []int
	for range n {
		job, err := s.Claim(ctx, channel, "w1", time.Minute)
		require.NoError(t, err)
		var m msg
		require.NoError(t, job.Decode(&m))
		got = append(got, m.N)
		require.NoError(t, s.Complete(ctx, job.ID, "w1"))
	}
	return got
}

func TestMemoryStorage_ClaimOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock, queue.WithStarvationEvery(0))

	_, err := enq.Enqueue(ctx, "push", msg{1}, queue.WithTier(queue.TierLow))
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "push", msg{2}, queue.WithTier(queue.TierNormal))
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "push", msg{3}, queue.WithTier(queue.TierHigh))
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "push", msg{4}, queue.WithTier(queue.TierHigh))
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "email", msg{5}, queue.WithTier(queue.TierHigh))
	require.NoError(t, err)

	assert.Equal(t, []int{3, 4, 2, 1}, claimN(t, storage, "push", 4))

	_, err = storage.Claim(ctx, "push", "w1", time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
}

func TestMemoryStorage_DelayRespected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	_, err := enq.Enqueue(ctx, "email", msg{1}, queue.WithTier(queue.TierHigh), queue.WithDelay(time.Minute))
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "email", msg{2}, queue.WithTier(queue.TierLow))
	require.NoError(t, err)

	assert.Equal(t, []int{2}, claimN(t, storage, "email", 1), "delayed high job is not eligible yet")

	_, err = storage.Claim(ctx, "email", "w1", time.Minute)
	require.ErrorIs(t, err, queue.ErrNoJobToClaim)

	st, err := storage.Stats(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Delayed)

	clock.Advance(time.Minute)
	assert.Equal(t, []int{1}, claimN(t, storage, "email", 1))
}

func TestMemoryStorage_StarvationFreedom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock, queue.WithStarvationEvery(3))

	_, err := enq.Enqueue(ctx, "push", msg{0}, queue.WithTier(queue.TierLow))
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		_, err := enq.Enqueue(ctx, "push", msg{i}, queue.WithTier(queue.TierHigh))
		require.NoError(t, err)
	}

	assert.Equal(t, []int{1, 2, 0}, claimN(t, storage, "push", 3))
}

func TestMemoryStorage_Retention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock, queue.WithRetention(2, 1))

	for i := range 4 {
		_, err := enq.Enqueue(ctx, "push", msg{i})
		require.NoError(t, err)
	}
	claimN(t, storage, "push", 3)

	job, err := storage.Claim(ctx, "push", "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.Fail(ctx, job.ID, "w1", "boom"))

	st, err := storage.Stats(ctx, "push")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 1, st.Failed)

	failed, err := storage.Failed(ctx, "push")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].LastError)
	assert.Equal(t, queue.JobStatusFailed, failed[0].Status)
}

func TestMemoryStorage_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	delayed, err := enq.Enqueue(ctx, "email", msg{1}, queue.WithDelay(time.Hour))
	require.NoError(t, err)
	due, err := enq.Enqueue(ctx, "email", msg{2})
	require.NoError(t, err)

	require.NoError(t, enq.Cancel(ctx, delayed.ID))
	_, err = storage.Get(ctx, delayed.ID)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)

	assert.ErrorIs(t, enq.Cancel(ctx, due.ID), queue.ErrJobNotCancellable, "due job")

	job, err := storage.Claim(ctx, "email", "w1", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, enq.Cancel(ctx, job.ID), queue.ErrJobNotCancellable, "active job")
	assert.ErrorIs(t, enq.Cancel(ctx, delayed.ID), queue.ErrJobNotFound)
}

func TestMemoryStorage_LockExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	h, err := enq.Enqueue(ctx, "push", msg{1})
	require.NoError(t, err)

	job, err := storage.Claim(ctx, "push", "crashed", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)

	_, err = storage.Claim(ctx, "push", "w2", time.Minute)
	require.ErrorIs(t, err, queue.ErrNoJobToClaim, "locked job is not redelivered early")

	clock.Advance(2 * time.Minute)
	again, err := storage.Claim(ctx, "push", "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, h.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)

	assert.ErrorIs(t, storage.Complete(ctx, h.ID, "crashed"), queue.ErrLockLost)
	require.NoError(t, storage.Complete(ctx, h.ID, "w2"))

	got, err := storage.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusCompleted, got.Status)
}

func TestMemoryStorage_HasPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	ok, err := storage.HasPending(ctx, queue.MaintenanceChannel, "purge")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = enq.Enqueue(ctx, queue.MaintenanceChannel, msg{}, queue.WithName("purge"))
	require.NoError(t, err)

	ok, err = storage.HasPending(ctx, queue.MaintenanceChannel, "purge")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStorage_LockExpiryRespectsMaxAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	h, err := enq.Enqueue(ctx, "push", msg{1}, queue.WithMaxAttempts(3))
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := storage.Claim(ctx, "push", "stuck", time.Second)
		require.NoError(t, err)
		assert.Equal(t, attempt, job.Attempts)
		clock.Advance(2 * time.Second)
	}

	_, err = storage.Claim(ctx, "push", "w2", time.Second)
	require.ErrorIs(t, err, queue.ErrNoJobToClaim, "exhausted job is not handed out again")

	got, err := storage.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "lock expired", got.LastError)
	assert.NotNil(t, got.FinishedAt)

	failed, err := storage.Failed(ctx, "push")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, h.ID, failed[0].ID)

	st, err := storage.Stats(ctx, "push")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Failed: 1}, st)
}
