package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

func TestSchedule(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t, from.Add(time.Hour), queue.Every(time.Hour).Next(from))
	assert.Equal(t, time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC), queue.DailyAt(3, 0).Next(from))
	assert.Equal(t, time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), queue.DailyAt(18, 0).Next(from))

	s, err := queue.ParseDaily("03:15")
	require.NoError(t, err)
	assert.Equal(t, "daily at 03:15", s.String())

	_, err = queue.ParseDaily("3am")
	assert.ErrorIs(t, err, queue.ErrInvalidSchedule)

	assert.Panics(t, func() { queue.Every(0) })
}

func TestScheduler_Tick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	storage, enq := newQueue(t, clock)

	s, err := queue.NewScheduler(enq, storage,
		queue.WithSchedulerClock(clock.Now),
		queue.WithSchedulerLogger(logger.Discard()),
	)
	require.NoError(t, err)
	require.NoError(t, s.AddTask("push.sweep", queue.Every(time.Hour)))
	assert.ErrorIs(t, s.AddTask("push.sweep", queue.Every(time.Hour)), queue.ErrTaskAlreadyRegistered)
	assert.Equal(t, []string{"push.sweep"}, s.Tasks())

	s.Tick(ctx)
	st, err := storage.Stats(ctx, queue.MaintenanceChannel)
	require.NoError(t, err)
	assert.Zero(t, st.Queued, "not due yet")

	clock.Advance(time.Hour)
	s.Tick(ctx)
	st, err = storage.Stats(ctx, queue.MaintenanceChannel)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Queued)

	clock.Advance(time.Hour)
	s.Tick(ctx)
	st, err = storage.Stats(ctx, queue.MaintenanceChannel)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Queued, "previous run still pending")

	job, err := storage.Claim(ctx, queue.MaintenanceChannel, "w", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "push.sweep", job.Name)
	assert.Equal(t, queue.TierLow, job.Tier)
	require.NoError(t, storage.Complete(ctx, job.ID, "w"))

	clock.Advance(time.Hour)
	s.Tick(ctx)
	st, err = storage.Stats(ctx, queue.MaintenanceChannel)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Queued)
}

func TestScheduler_RunWithoutTasks(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	s, err := queue.NewScheduler(enq, storage)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Run(context.Background())(), queue.ErrSchedulerNotConfigured)
}
