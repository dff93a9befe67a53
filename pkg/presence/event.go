package presence

import "encoding/json"

// Server to client events.
const (
	EventConnected      = "connected"
	EventPresenceUpdate = "presence:update"
	EventHeartbeat      = "heartbeat"
	EventError          = "error"
)

// Client to server events.
const (
	EventMarkRead    = "notification:mark_read"
	EventMarkAllRead = "notification:mark_all_read"
	EventPong        = "pong"
)

// Envelope is one event on the wire.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientMessage is an event received from a client. Data is decoded by the
// event handler.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PresenceUpdate is the payload of presence:update.
type PresenceUpdate struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// Connected is the payload of the handshake acknowledgment.
type Connected struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
}
