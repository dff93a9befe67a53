package presence

import "errors"

var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingSubject    = errors.New("token has no subject")
	ErrMissingSecret     = errors.New("jwt secret is required")
	ErrConnClosed        = errors.New("connection closed")
	ErrSendBufferFull    = errors.New("connection send buffer full")
	ErrInvalidTransition = errors.New("invalid connection state transition")
	ErrHubNil            = errors.New("presence hub is nil")
	ErrAuthenticatorNil  = errors.New("authenticator is nil")
)
