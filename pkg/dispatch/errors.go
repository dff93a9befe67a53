package dispatch

import "errors"

var (
	ErrNotificationsNil = errors.New("notification creator is nil")
	ErrEnqueuerNil      = errors.New("enqueuer is nil")
	ErrUnknownChannel   = errors.New("unknown delivery channel")
	ErrRecipientOffline = errors.New("recipient has no live session")
	ErrNoEmailAddress   = errors.New("recipient has no email address")
	ErrPushFailed       = errors.New("push delivery failed")
)
