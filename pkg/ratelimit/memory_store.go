package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     int
	refilledAt time.Time
	touchedAt  time.Time
}

// MemoryStore keeps buckets in a map. Idle buckets are dropped by Prune.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) Take(ctx context.Context, key string, n int, cfg Config, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, refilledAt: now}
		s.buckets[key] = b
	}

	// Whole intervals only; the remainder carries over to the next call.
	if elapsed := now.Sub(b.refilledAt); elapsed >= cfg.RefillInterval {
		maxIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
		intervals := min(int64(elapsed/cfg.RefillInterval), maxIntervals)
		b.tokens = min(b.tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
		if b.tokens == cfg.Capacity {
			b.refilledAt = now
		} else {
			b.refilledAt = b.refilledAt.Add(time.Duration(intervals) * cfg.RefillInterval)
		}
	}
	b.touchedAt = now

	res := Result{Limit: cfg.Capacity, ResetAt: b.refilledAt.Add(cfg.RefillInterval)}
	if b.tokens >= n {
		b.tokens -= n
		res.Allowed = true
	}
	res.Remaining = b.tokens
	return res, nil
}

// Prune drops buckets untouched since before and returns how many.
func (s *MemoryStore) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, b := range s.buckets {
		if b.touchedAt.Before(before) {
			delete(s.buckets, key)
			n++
		}
	}
	return n
}

// Len reports the number of tracked buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Cleanup returns a function for errgroup that prunes buckets idle for
// longer than idle every interval until ctx is done.
func (s *MemoryStore) Cleanup(ctx context.Context, interval, idle time.Duration) func() error {
	return func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-t.C:
				s.Prune(now.Add(-idle))
			}
		}
	}
}
