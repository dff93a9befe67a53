package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// State is the lifecycle stage of one connection.
type State string

const (
	StateConnecting    State = "connecting"
	StateAuthenticated State = "authenticated"
	StateConnected     State = "connected"
	StateDisconnected  State = "disconnected"
)

var stateTransitions = map[State][]State{
	StateConnecting:    {StateAuthenticated, StateDisconnected},
	StateAuthenticated: {StateConnected, StateDisconnected},
	StateConnected:     {StateDisconnected},
}

// CanTransition reports whether a connection in s may move to next.
// Disconnected is terminal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// lifecycle tracks a single connection attempt and logs every state change
// with the attrs of the connection.
type lifecycle struct {
	state  State
	logger *slog.Logger
	attrs  []slog.Attr
}

func newLifecycle(l *slog.Logger) *lifecycle {
	return &lifecycle{state: StateConnecting, logger: l}
}

// with adds attrs to every following log line.
func (l *lifecycle) with(attrs ...slog.Attr) {
	l.attrs = append(l.attrs, attrs...)
}

func (l *lifecycle) to(ctx context.Context, next State) error {
	if !l.state.CanTransition(next) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, next)
		l.logger.LogAttrs(ctx, slog.LevelError, "connection state change rejected", append(l.attrs, logger.Error(err))...)
		return err
	}
	l.logger.LogAttrs(ctx, slog.LevelDebug, "connection state changed",
		append(l.attrs, slog.String("from", string(l.state)), slog.String("to", string(next)))...)
	l.state = next
	return nil
}

// end moves the connection to StateDisconnected unless it already is.
func (l *lifecycle) end(ctx context.Context) {
	if l.state != StateDisconnected {
		_ = l.to(ctx, StateDisconnected)
	}
}

func (l *lifecycle) State() State {
	return l.state
}
