package pushsub

import (
	"context"
	"time"
)

// Store persists subscriptions. Implementations must be safe for concurrent
// use and Deactivate must be idempotent.
type Store interface {
	// Upsert inserts sub or, when the user already has a subscription with the
	// same endpoint, refreshes its keys, device info and last-active time and
	// reactivates it. The stored record is returned.
	Upsert(ctx context.Context, sub Subscription) (Subscription, error)
	Get(ctx context.Context, id string) (Subscription, error)
	ListActive(ctx context.Context, userID string) ([]Subscription, error)
	// Deactivate reports whether this call changed the record. Deactivating
	// an inactive subscription returns false and no error.
	Deactivate(ctx context.Context, id string, reason Reason, at time.Time) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// ListInactiveSince returns active subscriptions last seen before t.
	ListInactiveSince(ctx context.Context, t time.Time) ([]Subscription, error)
	// Purge deletes deactivated subscriptions deactivated before t.
	Purge(ctx context.Context, t time.Time) (int, error)
}
