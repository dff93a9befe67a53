package queue

import "time"

// Backoff returns the wait before the retry following the given attempt:
// base * 2^(attempt-1), capped at limit. A non-positive limit means no cap.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d <= 0 || (limit > 0 && d >= limit) {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
