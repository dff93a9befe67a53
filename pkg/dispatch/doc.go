// Package dispatch fans a new notification out to its delivery channels.
//
// Orchestrator.Dispatch persists the notification first, then checks the
// preference policy for every requested channel concurrently. Denied channels
// are left out of the result. Allowed channels are handled independently:
//
//   - inApp is delivered immediately when the recipient has a live session,
//     otherwise it is queued on the realtime channel if fallback is enabled,
//     or left in the stored history.
//   - push and email are enqueued as delivery jobs carrying a copy of the
//     notification.
//
// One channel failing never affects the others or the stored record; the
// caller receives one ChannelResult per allowed channel.
//
// The queue handlers for the three delivery channels live here as well:
// PushHandler, EmailHandler and RealtimeHandler. They translate delivery
// outcomes into the queue's retry semantics: terminal failures are wrapped
// with queue.Permanent, anything else is retried with backoff.
package dispatch
