// Package presence tracks live client sessions and delivers real-time events
// to them.
//
// A user may hold many sessions at once. Each session is registered in a Hub
// under an opaque ConnID, an index into the hub's connection arena paired
// with a generation counter, so a stale id can never address a newer
// session that reused the same slot.
//
// Every session walks the states connecting, authenticated, connected and
// disconnected. WebSocketHandler authenticates the handshake before the
// upgrade, so a rejected credential never reaches connected.
//
// Hub.Run pings every session on a fixed interval and disconnects sessions
// that stayed silent longer than the heartbeat timeout. A user's first
// connect and last disconnect are announced to everyone as presence:update.
//
// Presence is a latency optimization only: SendToUser reports whether at least
// one session took the event and callers fall back to queued delivery when it
// did not.
package presence
