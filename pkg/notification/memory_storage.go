package notification

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage. Suitable for development and testing.
type MemoryStorage struct {
	mu     sync.RWMutex
	byID   map[string]*Notification
	byUser map[string][]string // userID -> ids in insertion order
}

// NewMemoryStorage creates an empty in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:   make(map[string]*Notification),
		byUser: make(map[string][]string),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrMissingID
	}
	if n.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[n.ID]; ok {
		return ErrDuplicateID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	if n.Status == "" {
		n.Status = StatusUnread
	}

	c := n.clone()
	s.byID[n.ID] = &c
	s.byUser[n.UserID] = append(s.byUser[n.UserID], n.ID)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n.clone(), nil
}

func (s *MemoryStorage) List(ctx context.Context, userID string, filter Filter, page Page) ([]Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := filter.statuses()
	var matched []Notification
	for _, id := range s.byUser[userID] {
		n := s.byID[id]
		if !slices.Contains(statuses, n.Status) {
			continue
		}
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.From != nil && n.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !n.CreatedAt.Before(*filter.To) {
			continue
		}
		matched = append(matched, n.clone())
	}

	// Newest first; insertion order breaks ties so equal timestamps stay stable.
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := len(matched)
	start := min(max(page.Offset, 0), total)
	end := total
	if page.Limit > 0 {
		end = min(start+page.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byUser[userID] {
		if s.byID[id].Status == StatusUnread {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) CountByCategory(ctx context.Context, userID string) (map[Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Category]int)
	for _, id := range s.byUser[userID] {
		n := s.byID[id]
		if slices.Contains(Visible, n.Status) {
			counts[n.Category]++
		}
	}
	return counts, nil
}

func (s *MemoryStorage) UpdateStatus(ctx context.Context, userID string, ids []string, from []Status, to Status, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := ids
	if targets == nil {
		targets = s.byUser[userID]
	}

	var changed []string
	seen := make(map[string]struct{}, len(targets))
	for _, id := range targets {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		n, ok := s.byID[id]
		if !ok || n.UserID != userID || !slices.Contains(from, n.Status) {
			continue
		}
		n.Status = to
		n.UpdatedAt = at
		if to == StatusRead && n.ReadAt == nil {
			t := at
			n.ReadAt = &t
		}
		changed = append(changed, id)
	}
	return changed, nil
}

func (s *MemoryStorage) Purge(ctx context.Context, before time.Time, statuses []Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, ids := range s.byUser {
		kept := ids[:0]
		for _, id := range ids {
			n := s.byID[id]
			if slices.Contains(statuses, n.Status) && n.UpdatedAt.Before(before) {
				delete(s.byID, id)
				removed++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(s.byUser, userID)
		} else {
			s.byUser[userID] = kept
		}
	}
	return removed, nil
}
