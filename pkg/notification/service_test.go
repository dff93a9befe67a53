package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) SendToUser(ctx context.Context, userID, event string, data any) bool {
	args := m.Called(ctx, userID, event, data)
	return args.Bool(0)
}

func newService(t *testing.T, opts ...notification.ServiceOption) (*notification.Service, *notification.MemoryStorage) {
	t.Helper()
	storage := notification.NewMemoryStorage()
	recipients := notification.NewMemoryRecipients(
		notification.Recipient{ID: "alice", Email: "alice@example.com"},
		notification.Recipient{ID: "bob", Email: "bob@example.com"},
	)
	opts = append([]notification.ServiceOption{notification.WithLogger(logger.Discard())}, opts...)
	return notification.NewService(storage, recipients, opts...), storage
}

func create(t *testing.T, svc *notification.Service, userID, typ string) notification.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), notification.CreateParams{UserID: userID, Type: typ, Title: "t"})
	require.NoError(t, err)
	return n
}

func TestService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	n, err := svc.Create(ctx, notification.CreateParams{UserID: "alice", Type: "comment", Title: "New comment", Data: map[string]any{"post": "p1"}})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, notification.CategoryComments, n.Category)
	assert.Equal(t, notification.StatusUnread, n.Status)

	_, err = svc.Create(ctx, notification.CreateParams{UserID: "mallory", Type: "like"})
	assert.ErrorIs(t, err, notification.ErrRecipientNotFound)

	_, err = svc.Create(ctx, notification.CreateParams{Type: "like"})
	assert.ErrorIs(t, err, notification.ErrMissingUserID)
}

func TestService_MarkRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("emits read event once", func(t *testing.T) {
		pub := &MockPublisher{}
		svc, _ := newService(t, notification.WithPublisher(pub))
		n := create(t, svc, "alice", "like")

		pub.On("SendToUser", mock.Anything, "alice", notification.EventRead, map[string]any{"id": n.ID}).Return(true).Once()

		require.NoError(t, svc.MarkRead(ctx, n.ID, "alice"))
		require.NoError(t, svc.MarkRead(ctx, n.ID, "alice"), "second read is a no-op")

		got, err := svc.Get(ctx, n.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, notification.StatusRead, got.Status)
		assert.NotNil(t, got.ReadAt)
		pub.AssertExpectations(t)
	})

	t.Run("foreign notification", func(t *testing.T) {
		svc, _ := newService(t)
		n := create(t, svc, "alice", "like")
		assert.ErrorIs(t, svc.MarkRead(ctx, n.ID, "bob"), notification.ErrNotAuthorized)
	})

	t.Run("missing notification", func(t *testing.T) {
		svc, _ := newService(t)
		assert.ErrorIs(t, svc.MarkRead(ctx, "nope", "alice"), notification.ErrNotFound)
	})

	t.Run("archived stays archived", func(t *testing.T) {
		svc, _ := newService(t)
		n := create(t, svc, "alice", "like")
		require.NoError(t, svc.Archive(ctx, n.ID, "alice"))
		require.NoError(t, svc.MarkRead(ctx, n.ID, "alice"))

		got, err := svc.Get(ctx, n.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, notification.StatusArchived, got.Status)
	})
}

func TestService_MarkAllRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub := &MockPublisher{}
	svc, _ := newService(t, notification.WithPublisher(pub))

	for range 3 {
		create(t, svc, "alice", "like")
	}
	bobs := create(t, svc, "bob", "like")

	pub.On("SendToUser", mock.Anything, "alice", notification.EventBulkRead, map[string]any{"count": 3}).Return(false).Once()

	count, err := svc.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = svc.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	res, err := svc.List(ctx, "alice", notification.Filter{}, notification.Page{})
	require.NoError(t, err)
	assert.Zero(t, res.UnreadCount)
	assert.Equal(t, 3, res.Total)

	got, err := svc.Get(ctx, bobs.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusUnread, got.Status)
	pub.AssertExpectations(t)
}

func TestService_MarkReadBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	a1 := create(t, svc, "alice", "like")
	a2 := create(t, svc, "alice", "follow")
	a3 := create(t, svc, "alice", "follow")
	b1 := create(t, svc, "bob", "like")

	require.NoError(t, svc.MarkRead(ctx, a3.ID, "alice"))

	count, err := svc.MarkReadBatch(ctx, []string{a1.ID, a2.ID, a3.ID, b1.ID, "missing"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only caller-owned previously unread ids are counted")

	got, err := svc.Get(ctx, b1.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusUnread, got.Status)
}

func TestService_ConcurrentMarkAllRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	for range 50 {
		create(t, svc, "alice", "like")
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.MarkAllRead(ctx, "alice")
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, total)
}

func TestService_ArchiveDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)
	n := create(t, svc, "alice", "upload")

	assert.ErrorIs(t, svc.Archive(ctx, n.ID, "bob"), notification.ErrNotAuthorized)
	require.NoError(t, svc.Archive(ctx, n.ID, "alice"))
	require.NoError(t, svc.Archive(ctx, n.ID, "alice"))
	require.NoError(t, svc.Delete(ctx, n.ID, "alice"))

	_, err := svc.Get(ctx, n.ID, "alice")
	assert.ErrorIs(t, err, notification.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, n.ID, "alice"), notification.ErrNotFound)

	res, err := svc.List(ctx, "alice", notification.Filter{}, notification.Page{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestService_PurgeOlderThan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	clock := now.Add(-100 * 24 * time.Hour)
	svc, _ := newService(t, notification.WithClock(func() time.Time { return clock }))

	read := create(t, svc, "alice", "like")
	unread := create(t, svc, "alice", "like")
	deleted := create(t, svc, "alice", "like")
	require.NoError(t, svc.MarkRead(ctx, read.ID, "alice"))
	require.NoError(t, svc.Delete(ctx, deleted.ID, "alice"))

	clock = now

	n, err := svc.PurgeOlderThan(ctx, 90*24*time.Hour, notification.StatusUnread)
	require.NoError(t, err)
	assert.Zero(t, n, "unread is never eligible")

	n, err = svc.PurgeOlderThan(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Get(ctx, unread.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusUnread, got.Status)
}

func TestService_RetentionTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	clock := now.Add(-40 * 24 * time.Hour)
	svc, _ := newService(t, notification.WithClock(func() time.Time { return clock }))

	read := create(t, svc, "alice", "like")
	deleted := create(t, svc, "alice", "like")
	require.NoError(t, svc.MarkRead(ctx, read.ID, "alice"))
	require.NoError(t, svc.Delete(ctx, deleted.ID, "alice"))
	clock = now

	require.NoError(t, svc.RetentionTask(notification.DefaultConfig())(ctx))

	_, err := svc.Get(ctx, read.ID, "alice")
	require.NoError(t, err, "read is kept for 90 days")

	res, err := svc.List(ctx, "alice", notification.Filter{Statuses: []notification.Status{notification.StatusDeleted}}, notification.Page{})
	require.NoError(t, err)
	assert.Zero(t, res.Total, "deleted is purged after 30 days")
}

func TestService_Stats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	create(t, svc, "alice", "like")
	create(t, svc, "alice", "comment")
	c := create(t, svc, "alice", "comment")
	require.NoError(t, svc.MarkRead(ctx, c.ID, "alice"))

	st, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Unread)
	assert.Equal(t, 2, st.ByCategory[notification.CategoryComments])
	assert.Equal(t, 1, st.ByCategory[notification.CategoryLikes])
}
