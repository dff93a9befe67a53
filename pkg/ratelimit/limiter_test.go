package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/ratelimit"
)

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

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newLimiter(t *testing.T, cfg ratelimit.Config) (*ratelimit.Limiter, *clock) {
	t.Helper()
	c := &clock{now: t0}
	l, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg, ratelimit.WithClock(c.Now))
	require.NoError(t, err)
	return l, c
}

func TestNewLimiter_Validation(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.NewLimiter(nil, ratelimit.DefaultConfig())
	assert.ErrorIs(t, err, ratelimit.ErrStoreNil)

	for _, cfg := range []ratelimit.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
	}
}

func TestLimiter_TokenBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, c := newLimiter(t, ratelimit.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Second})

	for i := range 3 {
		res, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining, "denied calls consume nothing")
	assert.Equal(t, t0.Add(time.Second), res.ResetAt)

	other, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	c.Advance(time.Second)
	res, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	c.Advance(500 * time.Millisecond)
	res, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter(c.Now()))

	c.Advance(time.Hour)
	res, err = l.AllowN(ctx, "ip", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "refill is capped at capacity")
	assert.Equal(t, 0, res.Remaining)

	_, err = l.AllowN(ctx, "ip", 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidTokenCount)
}

func TestMemoryStore_Prune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	cfg := ratelimit.DefaultConfig()

	_, err := store.Take(ctx, "old", 1, cfg, t0)
	require.NoError(t, err)
	_, err = store.Take(ctx, "new", 1, cfg, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Prune(t0.Add(time.Minute)))
	assert.Equal(t, 1, store.Len())
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, int, ratelimit.Config, time.Time) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.Join(ratelimit.ErrStoreUnavailable, errors.New("connection refused"))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	request := func(h http.Handler, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("limits per client", func(t *testing.T) {
		l, _ := newLimiter(t, ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute})
		h := ratelimit.Middleware(l, ratelimit.ClientIP(false), logger.Discard())(ok)

		rec := request(h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec = request(h, "10.0.0.1:5678")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))

		assert.Equal(t, http.StatusNoContent, request(h, "10.0.0.2:1234").Code)
	})

	t.Run("store failure lets requests through", func(t *testing.T) {
		l, err := ratelimit.NewLimiter(failingStore{}, ratelimit.DefaultConfig())
		require.NoError(t, err)
		h := ratelimit.Middleware(l, ratelimit.ClientIP(false), logger.Discard())(ok)
		assert.Equal(t, http.StatusNoContent, request(h, "10.0.0.1:1").Code)
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		trust   bool
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:443", want: "192.0.2.1"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "untrusted proxy headers ignored", remote: "192.0.2.1:443", headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}, want: "192.0.2.1"},
		{name: "first valid forwarded", trust: true, remote: "192.0.2.1:443", headers: map[string]string{"X-Forwarded-For": "bogus, 203.0.113.9, 10.0.0.1"}, want: "203.0.113.9"},
		{name: "real ip", trust: true, remote: "192.0.2.1:443", headers: map[string]string{"X-Real-IP": "203.0.113.7"}, want: "203.0.113.7"},
		{name: "garbage", remote: "not-an-ip", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ratelimit.ClientIP(tc.trust)(req))
		})
	}
}
