package ratelimit

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid rate limit configuration")
	ErrInvalidTokenCount = errors.New("token count must be positive")
	ErrStoreNil          = errors.New("rate limit store is nil")
	ErrStoreUnavailable  = errors.New("rate limit store unavailable")
)
