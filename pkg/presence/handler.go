package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// ClientHandler executes actions requested by clients over the socket.
type ClientHandler interface {
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// WebSocketHandler authenticates, upgrades and serves client sessions.
type WebSocketHandler struct {
	hub      *Hub
	auth     Authenticator
	actions  ClientHandler
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HandlerOption configures a WebSocketHandler.
type HandlerOption func(*WebSocketHandler)

func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *WebSocketHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClientHandler enables notification:mark_read and
// notification:mark_all_read.
func WithClientHandler(c ClientHandler) HandlerOption {
	return func(h *WebSocketHandler) {
		h.actions = c
	}
}

func NewWebSocketHandler(hub *Hub, auth Authenticator, cfg Config, opts ...HandlerOption) (*WebSocketHandler, error) {
	if hub == nil {
		return nil, ErrHubNil
	}
	if auth == nil {
		return nil, ErrAuthenticatorNil
	}
	def := DefaultConfig()
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	h := &WebSocketHandler{
		hub:    hub,
		auth:   auth,
		cfg:    cfg,
		logger: slog.Default(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("presence"))
	return h, nil
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := newLifecycle(h.logger)
	defer state.end(ctx)

	userID, err := h.auth.Authenticate(ctx, TokenFromRequest(r))
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelDebug, "handshake rejected", logger.Error(err))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	state.with(logger.UserID(userID))
	if err := state.to(ctx, StateAuthenticated); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelDebug, "websocket upgrade failed", logger.UserID(userID), logger.Error(err))
		return
	}

	conn := newWSConn(ws, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	go conn.writePump()

	id := h.hub.Register(userID, conn)
	defer h.hub.Unregister(id)
	state.with(logger.ConnectionID(id.String()))
	if err := state.to(ctx, StateConnected); err != nil {
		return
	}

	_ = conn.Send(Envelope{Event: EventConnected, Data: Connected{ConnectionID: id.String(), UserID: userID}})
	h.readLoop(ctx, ws, conn, id, userID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *wsConn, id ConnID, userID string) {
	alive := func() {
		h.hub.Touch(id)
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))
	}

	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))
	ws.SetPongHandler(func(string) error {
		alive()
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.LogAttrs(ctx, slog.LevelDebug, "websocket read failed",
					logger.UserID(userID),
					logger.ConnectionID(id.String()),
					logger.Error(err),
				)
			}
			return
		}
		alive()

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = conn.Send(errorEnvelope("", "malformed message"))
			continue
		}
		h.dispatch(ctx, conn, userID, msg)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, conn *wsConn, userID string, msg ClientMessage) {
	switch msg.Event {
	case EventHeartbeat, EventPong:
		// activity already recorded

	case EventMarkRead:
		if h.actions == nil {
			_ = conn.Send(errorEnvelope(msg.Event, "not supported"))
			return
		}
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.ID == "" {
			_ = conn.Send(errorEnvelope(msg.Event, "id is required"))
			return
		}
		if err := h.actions.MarkRead(ctx, userID, req.ID); err != nil {
			_ = conn.Send(errorEnvelope(msg.Event, err.Error()))
		}

	case EventMarkAllRead:
		if h.actions == nil {
			_ = conn.Send(errorEnvelope(msg.Event, "not supported"))
			return
		}
		if _, err := h.actions.MarkAllRead(ctx, userID); err != nil {
			_ = conn.Send(errorEnvelope(msg.Event, err.Error()))
		}

	default:
		_ = conn.Send(errorEnvelope(msg.Event, "unknown event"))
	}
}

func errorEnvelope(event, message string) Envelope {
	return Envelope{Event: EventError, Data: map[string]string{
		"event":   event,
		"message": message,
	}}
}
