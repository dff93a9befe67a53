package presence

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Conn is one live client session as seen by the Hub. Send must not block.
type Conn interface {
	Send(env Envelope) error
	Ping() error
	Close() error
}

type session struct {
	userID   string
	conn     Conn
	lastSeen atomic.Int64 // unix nanos
}

// Hub maps users to their live sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions arena[session]
	users    map[string]map[ConnID]struct{}

	closing  atomic.Bool
	interval time.Duration
	timeout  time.Duration
	announce bool
	logger   *slog.Logger
	now      func() time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHeartbeat sets the ping interval and the silence timeout.
func WithHeartbeat(interval, timeout time.Duration) HubOption {
	return func(h *Hub) {
		if interval > 0 {
			h.interval = interval
		}
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithPresenceUpdates toggles presence:update announcements. On by default.
func WithPresenceUpdates(enabled bool) HubOption {
	return func(h *Hub) {
		h.announce = enabled
	}
}

func NewHub(opts ...HubOption) *Hub {
	def := DefaultConfig()
	h := &Hub{
		users:    make(map[string]map[ConnID]struct{}),
		interval: def.HeartbeatInterval,
		timeout:  def.HeartbeatTimeout,
		announce: true,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("presence"))
	return h
}

// Register adds a connected session for userID.
func (h *Hub) Register(userID string, conn Conn) ConnID {
	s := &session{userID: userID, conn: conn}
	s.lastSeen.Store(h.now().UnixNano())

	h.mu.Lock()
	id := h.sessions.alloc(s)
	set, ok := h.users[userID]
	if !ok {
		set = make(map[ConnID]struct{})
		h.users[userID] = set
	}
	set[id] = struct{}{}
	first := len(set) == 1
	h.mu.Unlock()

	h.logger.Debug("session registered",
		logger.UserID(userID),
		logger.ConnectionID(id.String()),
	)
	if first {
		h.announcePresence(userID, true)
	}
	return id
}

// Unregister removes and closes a session. It reports false for unknown or
// already removed ids.
func (h *Hub) Unregister(id ConnID) bool {
	h.mu.Lock()
	s, ok := h.sessions.release(id)
	if !ok {
		h.mu.Unlock()
		return false
	}
	set := h.users[s.userID]
	delete(set, id)
	last := len(set) == 0
	if last {
		delete(h.users, s.userID)
	}
	h.mu.Unlock()

	if err := s.conn.Close(); err != nil && !errors.Is(err, ErrConnClosed) {
		h.logger.Debug("failed to close session", logger.ConnectionID(id.String()), logger.Error(err))
	}
	h.logger.Debug("session unregistered",
		logger.UserID(s.userID),
		logger.ConnectionID(id.String()),
	)
	if last {
		h.announcePresence(s.userID, false)
	}
	return true
}

// Touch records a heartbeat response for id.
func (h *Hub) Touch(id ConnID) bool {
	h.mu.RLock()
	s, ok := h.sessions.get(id)
	h.mu.RUnlock()
	if !ok {
		return false
	}
	s.lastSeen.Store(h.now().UnixNano())
	return true
}

// IsOnline reports whether userID has at least one session.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Sessions returns the ids of userID's sessions.
func (h *Hub) Sessions(userID string) []ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Collect(maps.Keys(h.users[userID]))
}

// OnlineUsers returns the number of users with at least one session.
func (h *Hub) OnlineUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// Count returns the number of sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions.len()
}

type target struct {
	id   ConnID
	conn Conn
}

func (h *Hub) targetsOf(userID string) []target {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.users[userID]
	out := make([]target, 0, len(set))
	for id := range set {
		if s, ok := h.sessions.get(id); ok {
			out = append(out, target{id: id, conn: s.conn})
		}
	}
	return out
}

func (h *Hub) allTargets() []target {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]target, 0, h.sessions.len())
	for _, set := range h.users {
		for id := range set {
			if s, ok := h.sessions.get(id); ok {
				out = append(out, target{id: id, conn: s.conn})
			}
		}
	}
	return out
}

// SendToUser delivers an event to every session of userID concurrently and
// reports whether at least one accepted it.
func (h *Hub) SendToUser(ctx context.Context, userID, event string, data any) bool {
	targets := h.targetsOf(userID)
	if len(targets) == 0 {
		return false
	}
	return h.fanout(ctx, targets, Envelope{Event: event, Data: data}) > 0
}

// Broadcast delivers an event to every session and returns how many
// accepted it.
func (h *Hub) Broadcast(ctx context.Context, event string, data any) int {
	return h.fanout(ctx, h.allTargets(), Envelope{Event: event, Data: data})
}

func (h *Hub) fanout(ctx context.Context, targets []target, env Envelope) int {
	var (
		delivered atomic.Int32
		wg        sync.WaitGroup
	)
	for _, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := t.conn.Send(env)
			if err == nil {
				delivered.Add(1)
				return
			}
			h.logger.LogAttrs(ctx, slog.LevelDebug, "failed to send event",
				logger.ConnectionID(t.id.String()),
				logger.Event(env.Event),
				logger.Error(err),
			)
			if errors.Is(err, ErrConnClosed) {
				h.Unregister(t.id)
			}
		}()
	}
	wg.Wait()
	return int(delivered.Load())
}

func (h *Hub) announcePresence(userID string, online bool) {
	if !h.announce || h.closing.Load() {
		return
	}
	h.Broadcast(context.Background(), EventPresenceUpdate, PresenceUpdate{UserID: userID, Online: online})
}

// CheckHeartbeats drops sessions silent longer than the timeout and pings the
// rest. It returns the number of dropped sessions.
func (h *Hub) CheckHeartbeats(ctx context.Context) int {
	deadline := h.now().Add(-h.timeout).UnixNano()

	var stale, alive []target
	h.mu.RLock()
	for _, set := range h.users {
		for id := range set {
			s, ok := h.sessions.get(id)
			if !ok {
				continue
			}
			t := target{id: id, conn: s.conn}
			if s.lastSeen.Load() < deadline {
				stale = append(stale, t)
			} else {
				alive = append(alive, t)
			}
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, t := range stale {
		if h.Unregister(t.id) {
			dropped++
			h.logger.LogAttrs(ctx, slog.LevelInfo, "session heartbeat timed out",
				logger.ConnectionID(t.id.String()),
			)
		}
	}
	for _, t := range alive {
		if err := t.conn.Ping(); err != nil {
			if h.Unregister(t.id) {
				dropped++
			}
		}
	}
	return dropped
}

// Run emits heartbeats until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) func() error {
	return func() error {
		h.logger.InfoContext(ctx, "presence hub started",
			slog.Duration("heartbeat_interval", h.interval),
			slog.Duration("heartbeat_timeout", h.timeout),
		)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				h.Close()
				h.logger.Info("presence hub stopped")
				return nil
			case <-ticker.C:
				h.CheckHeartbeats(ctx)
			}
		}
	}
}

// Close disconnects every session without announcing presence changes.
func (h *Hub) Close() {
	h.closing.Store(true)
	defer h.closing.Store(false)
	for _, t := range h.allTargets() {
		h.Unregister(t.id)
	}
}
