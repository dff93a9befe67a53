// Package notification is the durable record of notifications and their
// read/archive lifecycle.
//
// The package is organised the same way as the other notifyhub stores:
//
//   - Notification, Status, Category and Channel define the domain vocabulary
//   - Storage is the persistence contract (MemoryStorage, PostgresStorage)
//   - Service enforces ownership and the status lifecycle on top of Storage
//
// # Lifecycle
//
// A notification starts unread and only moves forward:
//
//	unread -> read -> archived
//	any of the above -> deleted (soft)
//	read | archived | deleted -> purged (hard delete by the retention sweep)
//
// Backward moves such as archived -> unread are rejected with
// ErrInvalidTransition. Repeating a read on a read notification is a no-op.
//
// # Ownership
//
// Every mutating Service method takes the acting user. Acting on somebody
// else's notification fails with ErrNotAuthorized, acting on a missing or
// deleted one fails with ErrNotFound. MarkReadBatch is the exception: foreign
// ids are skipped and not counted, so the returned count is exactly the
// number of the caller's notifications that went from unread to read.
//
// # Real-time side effects
//
// When a Publisher is configured (the presence hub in production), MarkRead
// emits EventRead and MarkAllRead/MarkReadBatch emit EventBulkRead to the
// owner's open sessions so other devices reflect the read state.
package notification
