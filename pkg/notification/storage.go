package notification

import (
	"context"
	"time"
)

// Storage persists notifications. Implementations must make UpdateStatus
// atomic per notification: a row only changes when its current status is one
// of from, which is what keeps the lifecycle monotonic under concurrent calls.
type Storage interface {
	Create(ctx context.Context, n Notification) error

	// Get returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id string) (Notification, error)

	// List returns one page of userID's notifications (newest first) and the
	// total number matching the filter.
	List(ctx context.Context, userID string, filter Filter, page Page) ([]Notification, int, error)

	CountUnread(ctx context.Context, userID string) (int, error)

	// CountByCategory aggregates visible notifications per category.
	CountByCategory(ctx context.Context, userID string) (map[Category]int, error)

	// UpdateStatus moves userID's notifications whose status is in from to
	// status to. A nil ids slice targets all of the user's notifications.
	// It returns the ids that actually changed.
	UpdateStatus(ctx context.Context, userID string, ids []string, from []Status, to Status, at time.Time) ([]string, error)

	// Purge hard-deletes notifications in one of statuses last updated before
	// the cutoff and returns how many were removed.
	Purge(ctx context.Context, before time.Time, statuses []Status) (int, error)
}

// Filter narrows List results. Zero values mean "no constraint", except an
// empty Statuses which means Visible.
type Filter struct {
	Statuses []Status
	Category Category
	Type     string
	From     *time.Time
	To       *time.Time
}

// Page is offset pagination. A zero Limit returns everything after Offset.
type Page struct {
	Limit  int
	Offset int
}

func (f Filter) statuses() []Status {
	if len(f.Statuses) == 0 {
		return Visible
	}
	return f.Statuses
}
