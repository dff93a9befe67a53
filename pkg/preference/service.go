package preference

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service reads and updates preference documents.
type Service struct {
	store    Store
	defaults Preferences
	now      func() time.Time
}

// NewService creates a Service. cfg supplies the default quiet hours window
// of users without a document.
func NewService(store Store, cfg Config) *Service {
	if store == nil {
		panic(ErrStoreNil)
	}
	return &Service{store: store, defaults: cfg.Defaults(), now: time.Now}
}

// Get returns the user's merged document.
func (s *Service) Get(ctx context.Context, userID string) (Preferences, error) {
	if userID == "" {
		return Preferences{}, ErrMissingUserID
	}
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		p = s.defaults.Clone()
		p.UserID = userID
		return p, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Update applies a raw partial document (decoded JSON). Malformed fields
// fall back to their default; the rest of the document is preserved.
func (s *Service) Update(ctx context.Context, userID string, raw map[string]any) (Preferences, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	next := Merge(current, Normalize(raw))
	next.UserID = userID
	next.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, next); err != nil {
		return Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return next, nil
}

// Reset drops the user's customisations.
func (s *Service) Reset(ctx context.Context, userID string) (Preferences, error) {
	if userID == "" {
		return Preferences{}, ErrMissingUserID
	}
	p := s.defaults.Clone()
	p.UserID = userID
	p.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, p); err != nil {
		return Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}
