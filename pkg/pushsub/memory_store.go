package pushsub

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps subscriptions in process memory. Each user has its own
// lock so registrations of different users never contend.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userSubs
	owner map[string]string // subscription id -> user id
}

type userSubs struct {
	mu   sync.Mutex
	subs map[string]*Subscription // by id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*userSubs),
		owner: make(map[string]string),
	}
}

func (s *MemoryStore) user(userID string, create bool) *userSubs {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok = s.users[userID]; ok {
		return u
	}
	u = &userSubs{subs: make(map[string]*Subscription)}
	s.users[userID] = u
	return u
}

func (s *MemoryStore) lookup(id string) (*userSubs, bool) {
	s.mu.RLock()
	userID, ok := s.owner[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.user(userID, false), true
}

func (s *MemoryStore) Upsert(ctx context.Context, sub Subscription) (Subscription, error) {
	if sub.UserID == "" {
		return Subscription{}, ErrMissingUserID
	}
	u := s.user(sub.UserID, true)
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.subs {
		if existing.Endpoint != sub.Endpoint {
			continue
		}
		existing.Keys = sub.Keys
		existing.DeviceInfo = sub.DeviceInfo
		existing.LastActiveAt = sub.LastActiveAt
		existing.Active = true
		existing.DeactivatedAt = nil
		existing.DeactivationReason = ""
		return *existing, nil
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Active = true
	stored := sub
	u.subs[sub.ID] = &stored

	s.mu.Lock()
	s.owner[sub.ID] = sub.UserID
	s.mu.Unlock()
	return stored, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Subscription, error) {
	u, ok := s.lookup(id)
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	sub, ok := u.subs[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, userID string) ([]Subscription, error) {
	u := s.user(userID, false)
	if u == nil {
		return nil, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]Subscription, 0, len(u.subs))
	for _, sub := range u.subs {
		if sub.Active {
			out = append(out, *sub)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, id string, reason Reason, at time.Time) (bool, error) {
	u, ok := s.lookup(id)
	if !ok {
		return false, ErrSubscriptionNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	sub, ok := u.subs[id]
	if !ok {
		return false, ErrSubscriptionNotFound
	}
	if !sub.Active {
		return false, nil
	}
	sub.Active = false
	sub.DeactivatedAt = &at
	sub.DeactivationReason = reason
	return true, nil
}

func (s *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	u, ok := s.lookup(id)
	if !ok {
		return ErrSubscriptionNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	sub, ok := u.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if at.After(sub.LastActiveAt) {
		sub.LastActiveAt = at
	}
	return nil
}

func (s *MemoryStore) ListInactiveSince(ctx context.Context, t time.Time) ([]Subscription, error) {
	var out []Subscription
	s.each(func(sub *Subscription) {
		if sub.Active && sub.LastActiveAt.Before(t) {
			out = append(out, *sub)
		}
	})
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) Purge(ctx context.Context, t time.Time) (int, error) {
	s.mu.RLock()
	users := make([]*userSubs, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()

	var purged []string
	for _, u := range users {
		u.mu.Lock()
		for id, sub := range u.subs {
			if !sub.Active && sub.DeactivatedAt != nil && sub.DeactivatedAt.Before(t) {
				delete(u.subs, id)
				purged = append(purged, id)
			}
		}
		u.mu.Unlock()
	}

	s.mu.Lock()
	for _, id := range purged {
		delete(s.owner, id)
	}
	s.mu.Unlock()
	return len(purged), nil
}

func (s *MemoryStore) each(fn func(*Subscription)) {
	s.mu.RLock()
	users := make([]*userSubs, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.RUnlock()

	for _, u := range users {
		u.mu.Lock()
		for _, sub := range u.subs {
			fn(sub)
		}
		u.mu.Unlock()
	}
}

func sortByCreated(subs []Subscription) {
	slices.SortFunc(subs, func(a, b Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
