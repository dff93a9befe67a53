package pushsub_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/pushsub"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, sub pushsub.Subscription, msg pushsub.Message) error {
	return m.Called(ctx, sub.Endpoint, msg.Payload.Title).Error(0)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, store pushsub.Store, sender pushsub.Sender, c *clock) *pushsub.Manager {
	t.Helper()
	m, err := pushsub.NewManager(store, sender,
		pushsub.WithManagerLogger(logger.Discard()),
		pushsub.WithManagerClock(c.Now),
		pushsub.WithManagerConfig(pushsub.Config{
			Retention:       24 * time.Hour,
			PurgeAfter:      72 * time.Hour,
			SendConcurrency: 4,
		}),
	)
	require.NoError(t, err)
	return m
}

func register(t *testing.T, m *pushsub.Manager, userID, endpoint string) pushsub.Subscription {
	t.Helper()
	sub, err := m.Register(context.Background(), pushsub.RegisterParams{
		UserID:   userID,
		Endpoint: endpoint,
		Keys:     pushsub.Keys{P256dh: "p256dh", Auth: "auth"},
	})
	require.NoError(t, err)
	return sub
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()
	_, err := pushsub.NewManager(nil, &MockSender{})
	assert.ErrorIs(t, err, pushsub.ErrStoreNil)
	_, err = pushsub.NewManager(pushsub.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, pushsub.ErrSenderNil)
}

func TestManager_RegisterValidation(t *testing.T) {
	t.Parallel()
	m := newManager(t, pushsub.NewMemoryStore(), &MockSender{}, &clock{now: t0})
	ctx := context.Background()

	tests := []struct {
		name   string
		params pushsub.RegisterParams
		err    error
	}{
		{"missing user", pushsub.RegisterParams{Endpoint: "https://push.example.com/a"}, pushsub.ErrMissingUserID},
		{"missing endpoint", pushsub.RegisterParams{UserID: "u1"}, pushsub.ErrMissingEndpoint},
		{"plain http", pushsub.RegisterParams{UserID: "u1", Endpoint: "http://push.example.com/a", Keys: pushsub.Keys{P256dh: "k", Auth: "a"}}, pushsub.ErrInvalidEndpoint},
		{"missing keys", pushsub.RegisterParams{UserID: "u1", Endpoint: "https://push.example.com/a"}, pushsub.ErrMissingKeys},
		{"empty fcm token", pushsub.RegisterParams{UserID: "u1", Endpoint: "fcm:"}, pushsub.ErrInvalidEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(ctx, tt.params)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	sub, err := m.Register(ctx, pushsub.RegisterParams{UserID: "u1", Endpoint: "fcm:token-1"})
	require.NoError(t, err)
	assert.True(t, sub.IsFCM())
	assert.Equal(t, "token-1", sub.FCMToken())
}

func TestManager_RegisterTwiceYieldsOneSubscription(t *testing.T) {
	t.Parallel()
	c := &clock{now: t0}
	m := newManager(t, pushsub.NewMemoryStore(), &MockSender{}, c)
	ctx := context.Background()

	first := register(t, m, "u1", "https://push.example.com/a")
	c.Advance(time.Hour)
	second, err := m.Register(ctx, pushsub.RegisterParams{
		UserID:   "u1",
		Endpoint: "https://push.example.com/a",
		Keys:     pushsub.Keys{P256dh: "rotated", Auth: "rotated"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	active, err := m.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rotated", active[0].Keys.P256dh)
	assert.Equal(t, t0.Add(time.Hour), active[0].LastActiveAt)
}

func TestManager_Unregister(t *testing.T) {
	t.Parallel()
	m := newManager(t, pushsub.NewMemoryStore(), &MockSender{}, &clock{now: t0})
	ctx := context.Background()
	sub := register(t, m, "u1", "https://push.example.com/a")

	ok, err := m.Unregister(ctx, "u2", sub.ID)
	require.NoError(t, err)
	assert.False(t, ok, "foreign subscription")

	ok, err = m.Unregister(ctx, "u1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Unregister(ctx, "u1", sub.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Unregister(ctx, "u1", sub.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already inactive")

	active, err := m.ListActive(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestManager_SendGoneDeactivatesOnlyThatSubscription(t *testing.T) {
	t.Parallel()
	store := pushsub.NewMemoryStore()
	sender := &MockSender{}
	m := newManager(t, store, sender, &clock{now: t0})
	ctx := context.Background()

	gone := register(t, m, "u1", "https://push.example.com/gone")
	ok := register(t, m, "u1", "https://push.example.com/ok")

	sender.On("Send", mock.Anything, gone.Endpoint, "hello").Return(fmt.Errorf("%w: status 410", pushsub.ErrGone))
	sender.On("Send", mock.Anything, ok.Endpoint, "hello").Return(nil)

	res, err := m.Send(ctx, "u1", pushsub.Payload{Title: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Successful)
	assert.False(t, res.Retryable())

	active, err := m.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ok.ID, active[0].ID)

	got, err := store.Get(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, pushsub.ReasonExpired, got.DeactivationReason)
	sender.AssertExpectations(t)
}

func TestManager_SendPayloadTooLargeKeepsSubscription(t *testing.T) {
	t.Parallel()
	sender := &MockSender{}
	m := newManager(t, pushsub.NewMemoryStore(), sender, &clock{now: t0})
	ctx := context.Background()
	sub := register(t, m, "u1", "https://push.example.com/a")

	sender.On("Send", mock.Anything, sub.Endpoint, "big").Return(pushsub.ErrPayloadTooLarge)

	res, err := m.Send(ctx, "u1", pushsub.Payload{Title: "big"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Retryable())
	assert.ErrorIs(t, res.Results[0].Err, pushsub.ErrPayloadTooLarge)

	active, err := m.ListActive(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestManager_SendTransientIsRetryable(t *testing.T) {
	t.Parallel()
	sender := &MockSender{}
	m := newManager(t, pushsub.NewMemoryStore(), sender, &clock{now: t0})
	sub := register(t, m, "u1", "https://push.example.com/a")

	sender.On("Send", mock.Anything, sub.Endpoint, "hi").Return(errors.New("connection reset"))

	res, err := m.Send(context.Background(), "u1", pushsub.Payload{Title: "hi"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Retryable())
	assert.ErrorIs(t, res.Results[0].Err, pushsub.ErrTransient)
}

func TestManager_SendWithoutSubscriptions(t *testing.T) {
	t.Parallel()
	m := newManager(t, pushsub.NewMemoryStore(), &MockSender{}, &clock{now: t0})

	res, err := m.Send(context.Background(), "nobody", pushsub.Payload{Title: "hi"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Total)
	assert.False(t, res.Retryable())
}

func TestManager_SendTouchesSuccessfulSubscriptions(t *testing.T) {
	t.Parallel()
	c := &clock{now: t0}
	sender := &MockSender{}
	store := pushsub.NewMemoryStore()
	m := newManager(t, store, sender, c)
	sub := register(t, m, "u1", "https://push.example.com/a")

	sender.On("Send", mock.Anything, sub.Endpoint, "hi").Return(nil)
	c.Advance(time.Hour)

	_, err := m.Send(context.Background(), "u1", pushsub.Payload{Title: "hi"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), got.LastActiveAt)
}

func TestManager_Sweep(t *testing.T) {
	t.Parallel()
	c := &clock{now: t0}
	store := pushsub.NewMemoryStore()
	m := newManager(t, store, &MockSender{}, c)
	ctx := context.Background()

	stale := register(t, m, "u1", "https://push.example.com/stale")
	c.Advance(20 * time.Hour)
	fresh := register(t, m, "u1", "https://push.example.com/fresh")
	c.Advance(10 * time.Hour)

	res, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deactivated)
	assert.Zero(t, res.Purged)

	got, err := store.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, pushsub.ReasonCleanup, got.DeactivationReason)

	got, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	c.Advance(73 * time.Hour)
	require.NoError(t, m.SweepTask()(ctx))
	_, err = store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, pushsub.ErrSubscriptionNotFound)
}
