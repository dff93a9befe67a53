package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not answer PING within the connect timeout")
	ErrEmptyConnectionURL           = errors.New("redis connection url is empty; set REDIS_URL or run with in-memory subscriptions")
	ErrHealthcheckFailed            = errors.New("subscription registry is not reachable")
)
