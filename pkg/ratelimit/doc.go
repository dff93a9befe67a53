// Package ratelimit throttles HTTP entry points with a token bucket per key.
//
// Buckets live in a Store: MemoryStore for a single process, RedisStore when
// several notifyhub instances share a Redis. Middleware applies a Limiter
// to a handler, keyed by ClientIP or any other KeyFunc, and answers 429 with
// Retry-After once the bucket is empty.
package ratelimit
