package preference

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/cache"
)

// Store persists preference documents. Get returns ErrNotFound for users
// without a document.
type Store interface {
	Get(ctx context.Context, userID string) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// MemoryStore keeps documents in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Preferences)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.docs[userID]
	if !ok {
		return Preferences{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, p Preferences) error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[p.UserID] = p.Clone()
	return nil
}

// CachedStore fronts a Store with an LRU. Misses (ErrNotFound) are cached
// as defaults so hot users without a document do not hit the backend.
type CachedStore struct {
	next  Store
	cache *cache.LRU[string, cachedEntry]
}

type cachedEntry struct {
	prefs Preferences
	found bool
}

// NewCachedStore wraps next. size <= 0 returns next unchanged.
func NewCachedStore(next Store, size int, ttl time.Duration) Store {
	if size <= 0 {
		return next
	}
	return &CachedStore{
		next:  next,
		cache: cache.New[string, cachedEntry](size, ttl),
	}
}

func (s *CachedStore) Get(ctx context.Context, userID string) (Preferences, error) {
	if e, ok := s.cache.Get(userID); ok {
		if !e.found {
			return Preferences{}, ErrNotFound
		}
		return e.prefs.Clone(), nil
	}

	p, err := s.next.Get(ctx, userID)
	switch {
	case err == nil:
		s.cache.Set(userID, cachedEntry{prefs: p.Clone(), found: true})
	case errors.Is(err, ErrNotFound):
		s.cache.Set(userID, cachedEntry{})
	}
	return p, err
}

func (s *CachedStore) Save(ctx context.Context, p Preferences) error {
	s.cache.Delete(p.UserID)
	if err := s.next.Save(ctx, p); err != nil {
		return err
	}
	s.cache.Set(p.UserID, cachedEntry{prefs: p.Clone(), found: true})
	return nil
}
