package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

func TestNewEnqueuer_NilStorage(t *testing.T) {
	t.Parallel()
	_, err := queue.NewEnqueuer(nil)
	assert.ErrorIs(t, err, queue.ErrStorageNil)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage := queue.NewMemoryStorage(queue.WithStorageClock(clock.Now))

	cfg := queue.DefaultConfig()
	cfg.DelayLow = 30 * time.Second
	cfg.MaxAttempts = 4

	var notified []string
	enq, err := queue.NewEnqueuer(storage,
		queue.WithConfig(cfg),
		queue.WithEnqueuerClock(clock.Now),
		queue.WithNotify(func(ch string) { notified = append(notified, ch) }),
	)
	require.NoError(t, err)

	t.Run("defaults", func(t *testing.T) {
		h, err := enq.Enqueue(ctx, "push", msg{1})
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), h.ScheduledAt)

		job, err := storage.Get(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.TierNormal, job.Tier)
		assert.Equal(t, 4, job.MaxAttempts)
		assert.Equal(t, "queue_test.msg", job.Name)
		assert.Equal(t, queue.JobStatusQueued, job.Status)
		assert.JSONEq(t, `{"n":1}`, string(job.Payload))
	})

	t.Run("tier default delay", func(t *testing.T) {
		h, err := enq.Enqueue(ctx, "push", msg{2}, queue.WithTier(queue.TierLow))
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(30*time.Second), h.ScheduledAt)
	})

	t.Run("batch delay", func(t *testing.T) {
		h, err := enq.Enqueue(ctx, "email", msg{3}, queue.WithTier(queue.TierLow), queue.WithBatchDelay())
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(5*time.Minute), h.ScheduledAt)
	})

	t.Run("explicit delay wins", func(t *testing.T) {
		h, err := enq.Enqueue(ctx, "email", msg{4}, queue.WithTier(queue.TierLow), queue.WithDelay(time.Second))
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(time.Second), h.ScheduledAt)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := enq.Enqueue(ctx, "", msg{})
		assert.ErrorIs(t, err, queue.ErrChannelRequired)

		_, err = enq.Enqueue(ctx, "push", nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)

		_, err = enq.Enqueue(ctx, "push", msg{}, queue.WithTier(queue.Tier(9)))
		assert.ErrorIs(t, err, queue.ErrInvalidTier)

		_, err = enq.Enqueue(ctx, "push", make(chan int))
		assert.ErrorIs(t, err, queue.ErrPayloadMarshal)
	})

	assert.Equal(t, []string{"push", "push", "email", "email"}, notified)
}
