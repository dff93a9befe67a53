// Package pushsub manages push subscriptions and delivers push messages to
// them.
//
// A Subscription is keyed by user and endpoint: registering the same endpoint
// twice refreshes the keys and last-active time of the existing record. Web
// Push endpoints are delivered through WebPushSender (VAPID, RFC 8030) and
// endpoints prefixed with "fcm:" through FCMSender. RouterSender picks the
// right one per endpoint.
//
// Manager.Send fans out to every active subscription of a user and classifies
// failures:
//
//   - ErrGone: the endpoint no longer exists. The subscription is deactivated
//     with ReasonExpired and delivery to the remaining subscriptions goes on.
//   - ErrPayloadTooLarge: logged and not retried. The subscription stays active.
//   - anything else: transient. SendResult.Retryable reports it so a queue
//     handler can ask for another attempt.
//
// Manager.Sweep deactivates subscriptions that have been silent longer than
// Config.Retention and purges deactivated records older than
// Config.PurgeAfter.
//
// Two stores are provided: MemoryStore for development and tests, and
// RedisStore which keeps one hash per subscription plus per-user indexes.
package pushsub
