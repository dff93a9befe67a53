package notification

import "errors"

var (
	// ErrNotFound is returned for missing, deleted or purged notifications.
	ErrNotFound = errors.New("notification not found")

	// ErrNotAuthorized is returned when a user acts on a notification owned by someone else.
	ErrNotAuthorized = errors.New("notification belongs to another user")

	// ErrRecipientNotFound is returned when creating a notification for an unknown user.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInvalidTransition is returned when a status change would move a notification backwards.
	ErrInvalidTransition = errors.New("invalid notification status transition")

	ErrMissingUserID = errors.New("notification user id is required")
	ErrMissingID     = errors.New("notification id is required")
	ErrDuplicateID   = errors.New("notification id already exists")
	ErrStorageNil    = errors.New("notification storage cannot be nil")
)
