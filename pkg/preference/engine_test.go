package preference_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/preference"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID string) (preference.Preferences, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(preference.Preferences), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, p preference.Preferences) error {
	return m.Called(ctx, p).Error(0)
}

func newEngine(store preference.Store, now time.Time) *preference.Engine {
	return preference.NewEngine(store,
		preference.WithEngineClock(func() time.Time { return now }),
		preference.WithEngineLogger(logger.Discard()),
	)
}

func save(t *testing.T, s preference.Store, userID string, raw map[string]any) {
	t.Helper()
	p := preference.Merge(preference.DefaultsFor(userID), preference.Normalize(raw))
	require.NoError(t, s.Save(context.Background(), p))
}

func TestEngine_NoDocumentUsesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(preference.NewMemoryStore(), at(12, 0))

	assert.True(t, e.IsAllowed(ctx, "u1", notification.CategoryLikes, notification.ChannelEmail))
	assert.False(t, e.IsAllowed(ctx, "u1", notification.CategoryMarketing, notification.ChannelPush))
	assert.True(t, e.IsAllowed(ctx, "u1", notification.Category("brand_new"), notification.ChannelPush), "unconfigured category fails open")
}

func TestEngine_GlobalToggleDeniesEveryCategory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := preference.NewMemoryStore()
	save(t, store, "u1", map[string]any{"email": false})
	e := newEngine(store, at(12, 0))

	for _, c := range append(notification.Categories, notification.CategorySecurity, "brand_new") {
		d := e.Decide(ctx, "u1", c, notification.ChannelEmail)
		assert.False(t, d.Allowed, "category %s", c)
		assert.Equal(t, preference.ReasonGlobalOff, d.Reason)
	}
	assert.True(t, e.IsAllowed(ctx, "u1", notification.CategoryLikes, notification.ChannelPush))
}

func TestEngine_CategoryFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := preference.NewMemoryStore()
	save(t, store, "u1", map[string]any{
		"categories": map[string]any{"likes": map[string]any{"push": false}},
	})
	e := newEngine(store, at(12, 0))

	d := e.Decide(ctx, "u1", notification.CategoryLikes, notification.ChannelPush)
	assert.False(t, d.Allowed)
	assert.Equal(t, preference.ReasonCategoryOff, d.Reason)
	assert.True(t, e.IsAllowed(ctx, "u1", notification.CategoryLikes, notification.ChannelEmail))
}

func TestEngine_QuietHours(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := preference.NewMemoryStore()
	save(t, store, "u1", map[string]any{
		"quietHours": map[string]any{"enabled": true, "start": "22:00", "end": "08:00"},
	})

	night := newEngine(store, at(23, 30))
	d := night.Decide(ctx, "u1", notification.CategoryComments, notification.ChannelPush)
	assert.False(t, d.Allowed)
	assert.Equal(t, preference.ReasonQuietHours, d.Reason)

	d = night.Decide(ctx, "u1", notification.CategorySystem, notification.ChannelPush)
	assert.True(t, d.Allowed)
	assert.Equal(t, preference.ReasonUrgentOverride, d.Reason)
	assert.True(t, night.IsAllowed(ctx, "u1", notification.CategorySecurity, notification.ChannelEmail))

	day := newEngine(store, at(14, 0))
	assert.True(t, day.IsAllowed(ctx, "u1", notification.CategoryComments, notification.ChannelPush))
}

func TestEngine_StoreErrorFailsOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &MockStore{}
	store.On("Get", mock.Anything, "u1").Return(preference.Preferences{}, errors.New("connection refused"))
	e := newEngine(store, at(12, 0))

	d := e.Decide(ctx, "u1", notification.CategoryMarketing, notification.ChannelEmail)
	assert.True(t, d.Allowed)
	assert.Equal(t, preference.ReasonFailOpen, d.Reason)

	chans := e.AllowedChannels(ctx, "u1", notification.CategoryLikes, notification.Channels)
	assert.Equal(t, notification.Channels, chans)
	store.AssertExpectations(t)
}

func TestEngine_StoreErrorLoggedAsError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &MockStore{}
	store.On("Get", mock.Anything, "u1").Return(preference.Preferences{}, errors.New("connection refused"))

	var buf bytes.Buffer
	e := preference.NewEngine(store,
		preference.WithEngineClock(func() time.Time { return at(12, 0) }),
		preference.WithEngineLogger(logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))),
	)

	assert.True(t, e.IsAllowed(ctx, "u1", notification.CategoryLikes, notification.ChannelPush))
	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "preference lookup failed")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestEngine_NoDocumentUsesConfiguredDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := preference.Config{QuietHoursStart: "13:00", QuietHoursEnd: "15:00"}
	def := cfg.Defaults()
	def.QuietHours.Enabled = true

	e := preference.NewEngine(preference.NewMemoryStore(),
		preference.WithEngineClock(func() time.Time { return at(14, 0) }),
		preference.WithEngineLogger(logger.Discard()),
		preference.WithDefaults(def),
	)

	d := e.Decide(ctx, "u1", notification.CategoryLikes, notification.ChannelPush)
	assert.False(t, d.Allowed)
	assert.Equal(t, preference.ReasonQuietHours, d.Reason)

	def.QuietHours.Enabled = false
	d = e.Decide(ctx, "u1", notification.CategoryLikes, notification.ChannelPush)
	assert.Equal(t, preference.ReasonQuietHours, d.Reason, "engine keeps its own copy")
}

func TestEngine_AllowedChannels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := preference.NewMemoryStore()
	save(t, store, "u1", map[string]any{"email": false})
	e := newEngine(store, at(12, 0))

	got := e.AllowedChannels(ctx, "u1", notification.CategoryComments, notification.Channels)
	assert.Equal(t, []notification.Channel{notification.ChannelInApp, notification.ChannelPush}, got)
}
