package presence

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

func TestArena_StaleIDAfterReuse(t *testing.T) {
	t.Parallel()
	var a arena[string]
	first, second := "first", "second"

	id1 := a.alloc(&first)
	require.False(t, id1.IsZero())
	_, ok := a.release(id1)
	require.True(t, ok)

	id2 := a.alloc(&second)
	assert.Equal(t, id1.slot, id2.slot, "slot is reused")
	assert.NotEqual(t, id1, id2)

	_, ok = a.get(id1)
	assert.False(t, ok, "stale id must not resolve")
	v, ok := a.get(id2)
	require.True(t, ok)
	assert.Equal(t, "second", *v)

	_, ok = a.release(id1)
	assert.False(t, ok)
	assert.Equal(t, 1, a.len())
}

func TestArena_ZeroID(t *testing.T) {
	t.Parallel()
	var a arena[int]
	_, ok := a.get(ConnID{})
	assert.False(t, ok)
}

func TestState_Transitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	l := newLifecycle(logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON), logger.WithLevel(slog.LevelDebug)))
	l.with(logger.UserID("u1"))

	assert.Equal(t, StateConnecting, l.State())
	assert.ErrorIs(t, l.to(ctx, StateConnected), ErrInvalidTransition, "must authenticate first")
	assert.Contains(t, buf.String(), "connection state change rejected")

	require.NoError(t, l.to(ctx, StateAuthenticated))
	require.NoError(t, l.to(ctx, StateConnected))
	l.end(ctx)
	assert.Equal(t, StateDisconnected, l.State())
	l.end(ctx)
	assert.ErrorIs(t, l.to(ctx, StateConnected), ErrInvalidTransition, "disconnected is terminal")

	assert.Equal(t, 3, strings.Count(buf.String(), "connection state changed"))
	assert.Contains(t, buf.String(), `"to":"disconnected"`)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)

	assert.True(t, StateConnecting.CanTransition(StateDisconnected))
	assert.False(t, StateDisconnected.CanTransition(StateConnecting))
}
