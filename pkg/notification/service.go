package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Publisher pushes an event to a user's live sessions and reports whether at
// least one session received it.
type Publisher interface {
	SendToUser(ctx context.Context, userID, event string, data any) bool
}

// CreateParams describes a new notification.
type CreateParams struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   map[string]any
}

// ListResult is one page of notifications with counters for badges.
type ListResult struct {
	Items       []Notification `json:"items"`
	Total       int            `json:"total"`
	UnreadCount int            `json:"unread_count"`
}

// Stats aggregates a user's visible notifications.
type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByCategory map[Category]int `json:"by_category"`
}

// Service enforces ownership and the status lifecycle on top of Storage.
type Service struct {
	storage    Storage
	recipients Recipients
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublisher emits read events to the owner's live sessions.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a notification service. recipients may be nil, in which
// case every user id is accepted.
func NewService(storage Storage, recipients Recipients, opts ...ServiceOption) *Service {
	if storage == nil {
		panic(ErrStorageNil)
	}
	s := &Service{
		storage:    storage,
		recipients: recipients,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new unread notification. It does not deliver anything.
func (s *Service) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if p.UserID == "" {
		return Notification{}, ErrMissingUserID
	}
	if s.recipients != nil {
		if _, err := s.recipients.Lookup(ctx, p.UserID); err != nil {
			if errors.Is(err, ErrRecipientNotFound) {
				return Notification{}, err
			}
			return Notification{}, fmt.Errorf("lookup recipient: %w", err)
		}
	}

	now := s.now()
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Type:      p.Type,
		Category:  CategoryOf(p.Type),
		Title:     p.Title,
		Body:      p.Body,
		Data:      p.Data,
		Status:    StatusUnread,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.Create(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("store notification: %w", err)
	}
	return n, nil
}

// Get returns a notification owned by actor.
func (s *Service) Get(ctx context.Context, id, actor string) (Notification, error) {
	return s.owned(ctx, id, actor)
}

// List returns one page of the user's notifications. Deleted notifications
// are only included when filter.Statuses asks for them.
func (s *Service) List(ctx context.Context, userID string, filter Filter, page Page) (ListResult, error) {
	items, total, err := s.storage.List(ctx, userID, filter, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return ListResult{}, fmt.Errorf("count unread: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return ListResult{Items: items, Total: total, UnreadCount: unread}, nil
}

// MarkRead marks a single notification as read. Already read or archived
// notifications are left untouched.
func (s *Service) MarkRead(ctx context.Context, id, actor string) error {
	n, err := s.owned(ctx, id, actor)
	if err != nil {
		return err
	}
	if alreadyApplied(n.Status, ActionRead) {
		return nil
	}

	changed, err := s.apply(ctx, actor, []string{id}, ActionRead)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		s.publish(ctx, actor, EventRead, map[string]any{"id": id})
	}
	return nil
}

// MarkAllRead marks every unread notification of actor as read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, actor string) (int, error) {
	changed, err := s.apply(ctx, actor, nil, ActionRead)
	if err != nil {
		return 0, err
	}
	if len(changed) > 0 {
		s.publish(ctx, actor, EventBulkRead, map[string]any{"count": len(changed)})
	}
	return len(changed), nil
}

// MarkReadBatch marks the given notifications as read. Ids owned by other
// users or not unread are skipped, so the count is exact.
func (s *Service) MarkReadBatch(ctx context.Context, ids []string, actor string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	changed, err := s.apply(ctx, actor, ids, ActionRead)
	if err != nil {
		return 0, err
	}
	if len(changed) > 0 {
		s.publish(ctx, actor, EventBulkRead, map[string]any{"count": len(changed), "ids": changed})
	}
	return len(changed), nil
}

// Archive moves an unread or read notification to archived.
func (s *Service) Archive(ctx context.Context, id, actor string) error {
	return s.single(ctx, id, actor, ActionArchive)
}

// Delete soft-deletes a notification. The retention sweep purges it later.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	return s.single(ctx, id, actor, ActionDelete)
}

// PurgeOlderThan hard-deletes notifications in the given statuses whose last
// update is older than age. Only read, archived and deleted notifications are
// eligible; other statuses are ignored. With no statuses all eligible ones
// are considered.
func (s *Service) PurgeOlderThan(ctx context.Context, age time.Duration, statuses ...Status) (int, error) {
	eligible := SourcesOf(ActionPurge)
	if len(statuses) > 0 {
		filtered := make([]Status, 0, len(statuses))
		for _, st := range statuses {
			if _, err := Transition(st, ActionPurge); err == nil {
				filtered = append(filtered, st)
			}
		}
		eligible = filtered
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	n, err := s.storage.Purge(ctx, s.now().Add(-age), eligible)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return n, nil
}

// Stats returns aggregate counts for the user.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	byCat, err := s.storage.CountByCategory(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("count by category: %w", err)
	}
	unread, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("count unread: %w", err)
	}
	total := 0
	for _, c := range byCat {
		total += c
	}
	return Stats{Total: total, Unread: unread, ByCategory: byCat}, nil
}

// RetentionTask returns the periodic purge job body. Each status has its own
// retention window.
func (s *Service) RetentionTask(cfg Config) func(ctx context.Context) error {
	windows := []struct {
		status Status
		age    time.Duration
	}{
		{StatusRead, cfg.RetentionRead},
		{StatusArchived, cfg.RetentionArchived},
		{StatusDeleted, cfg.RetentionDeleted},
	}
	return func(ctx context.Context) error {
		var errs []error
		for _, w := range windows {
			if w.age <= 0 {
				continue
			}
			n, err := s.PurgeOlderThan(ctx, w.age, w.status)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if n > 0 {
				s.logger.LogAttrs(ctx, slog.LevelInfo, "purged notifications",
					slog.String("status", string(w.status)),
					slog.Int("count", n),
				)
			}
		}
		return errors.Join(errs...)
	}
}

func (s *Service) owned(ctx context.Context, id, actor string) (Notification, error) {
	n, err := s.storage.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("get notification: %w", err)
	}
	if n.UserID != actor {
		return Notification{}, ErrNotAuthorized
	}
	if n.Status == StatusDeleted || n.Status == StatusPurged {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *Service) single(ctx context.Context, id, actor string, action Action) error {
	n, err := s.owned(ctx, id, actor)
	if err != nil {
		return err
	}
	if alreadyApplied(n.Status, action) {
		return nil
	}
	if _, err := Transition(n.Status, action); err != nil {
		return err
	}
	_, err = s.apply(ctx, actor, []string{id}, action)
	return err
}

func (s *Service) apply(ctx context.Context, actor string, ids []string, action Action) ([]string, error) {
	t := transitions[action]
	changed, err := s.storage.UpdateStatus(ctx, actor, ids, t.from, t.to, s.now())
	if err != nil {
		return nil, fmt.Errorf("update notification status: %w", err)
	}
	return changed, nil
}

func (s *Service) publish(ctx context.Context, userID, event string, data any) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.SendToUser(ctx, userID, event, data) {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "no live session for event",
			logger.UserID(userID),
			logger.Event(event),
		)
	}
}
