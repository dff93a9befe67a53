package pushsub

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrMissingUserID        = errors.New("user id is required")
	ErrMissingEndpoint      = errors.New("push endpoint is required")
	ErrInvalidEndpoint      = errors.New("push endpoint must be an https url or an fcm token")
	ErrMissingKeys          = errors.New("web push subscription requires p256dh and auth keys")
	ErrStoreNil             = errors.New("push subscription store is nil")
	ErrSenderNil            = errors.New("push sender is nil")

	// Delivery outcomes returned by senders.
	ErrGone                = errors.New("push endpoint is gone")
	ErrPayloadTooLarge     = errors.New("push payload too large")
	ErrUnsupportedEndpoint = errors.New("no sender configured for push endpoint")
	ErrTransient           = errors.New("transient push delivery failure")

	ErrFirebaseInit = errors.New("failed to initialize firebase messaging")
)

// IsTerminal reports whether a delivery error must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrGone) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrUnsupportedEndpoint)
}
