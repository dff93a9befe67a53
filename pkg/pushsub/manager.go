package pushsub

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Result is the outcome of delivering to one subscription.
type Result struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	Deactivated    bool   `json:"deactivated,omitempty"`
	Err            error  `json:"-"`
}

// SendResult aggregates delivery to all active subscriptions of a user.
type SendResult struct {
	Success    bool     `json:"success"`
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Results    []Result `json:"results"`
}

// Retryable reports whether any subscription failed with a transient error.
func (r SendResult) Retryable() bool {
	for _, res := range r.Results {
		if res.Err != nil && !IsTerminal(res.Err) {
			return true
		}
	}
	return false
}

// SweepResult counts what one Sweep changed.
type SweepResult struct {
	Deactivated int
	Purged      int
}

// Manager owns the subscription lifecycle: registration, delivery with
// failure classification, and retention.
type Manager struct {
	store       Store
	sender      Sender
	logger      *slog.Logger
	now         func() time.Time
	retention   time.Duration
	purgeAfter  time.Duration
	concurrency int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerConfig applies retention windows and send concurrency.
func WithManagerConfig(cfg Config) ManagerOption {
	return func(m *Manager) {
		m.retention = cfg.Retention
		m.purgeAfter = cfg.PurgeAfter
		if cfg.SendConcurrency > 0 {
			m.concurrency = cfg.SendConcurrency
		}
	}
}

func NewManager(store Store, sender Sender, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}
	def := DefaultConfig()
	m := &Manager{
		store:       store,
		sender:      sender,
		logger:      slog.Default(),
		now:         time.Now,
		retention:   def.Retention,
		purgeAfter:  def.PurgeAfter,
		concurrency: def.SendConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("pushsub"))
	return m, nil
}

// Register upserts the subscription for (user, endpoint).
func (m *Manager) Register(ctx context.Context, p RegisterParams) (Subscription, error) {
	if err := p.validate(); err != nil {
		return Subscription{}, err
	}
	now := m.now()
	sub, err := m.store.Upsert(ctx, Subscription{
		UserID:       p.UserID,
		Endpoint:     p.Endpoint,
		Keys:         p.Keys,
		DeviceInfo:   p.DeviceInfo,
		Active:       true,
		LastActiveAt: now,
		CreatedAt:    now,
	})
	if err != nil {
		return Subscription{}, err
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, "push subscription registered",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
	)
	return sub, nil
}

// Unregister soft-deactivates a subscription owned by userID. It returns
// false when no such active subscription exists.
func (m *Manager) Unregister(ctx context.Context, userID, id string) (bool, error) {
	sub, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sub.UserID != userID {
		return false, nil
	}
	changed, err := m.store.Deactivate(ctx, id, ReasonUserInitiated, m.now())
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	return changed, err
}

func (m *Manager) ListActive(ctx context.Context, userID string) ([]Subscription, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return m.store.ListActive(ctx, userID)
}

// Send delivers p to every active subscription of userID concurrently. A
// gone endpoint is deactivated with ReasonExpired without affecting the
// others. Only store errors are returned; delivery failures are reported in
// the result.
func (m *Manager) Send(ctx context.Context, userID string, p Payload) (SendResult, error) {
	subs, err := m.ListActive(ctx, userID)
	if err != nil {
		return SendResult{}, err
	}
	res := SendResult{Total: len(subs), Results: make([]Result, len(subs))}
	if len(subs) == 0 {
		return res, nil
	}

	msg, err := NewMessage(p)
	if err != nil {
		return SendResult{}, err
	}

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			res.Results[i] = m.deliver(ctx, sub, msg)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range res.Results {
		if r.Success {
			res.Successful++
		}
	}
	res.Success = res.Successful > 0
	return res, nil
}

func (m *Manager) deliver(ctx context.Context, sub Subscription, msg Message) Result {
	res := Result{SubscriptionID: sub.ID}
	attrs := []slog.Attr{logger.UserID(sub.UserID), logger.SubscriptionID(sub.ID)}

	err := m.sender.Send(ctx, sub, msg)
	switch {
	case err == nil:
		res.Success = true
		if err := m.store.Touch(ctx, sub.ID, m.now()); err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to touch push subscription", append(attrs, logger.Error(err))...)
		}

	case errors.Is(err, ErrGone):
		res.Err = err
		changed, derr := m.store.Deactivate(ctx, sub.ID, ReasonExpired, m.now())
		if derr != nil && !errors.Is(derr, ErrSubscriptionNotFound) {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deactivate gone push subscription", append(attrs, logger.Error(derr))...)
			break
		}
		res.Deactivated = changed
		m.logger.LogAttrs(ctx, slog.LevelInfo, "push endpoint gone, subscription deactivated", append(attrs, logger.Error(err))...)

	case errors.Is(err, ErrPayloadTooLarge):
		res.Err = err
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push payload too large", append(attrs, slog.Int("size", len(msg.Body)))...)

	case IsTerminal(err):
		res.Err = err
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push delivery failed permanently", append(attrs, logger.Error(err))...)

	default:
		if !errors.Is(err, ErrTransient) {
			err = errors.Join(ErrTransient, err)
		}
		res.Err = err
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push delivery failed", append(attrs, logger.Error(err))...)
	}
	return res
}

// Sweep deactivates subscriptions silent for longer than the retention
// window and purges records deactivated longer than the purge window ago.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var out SweepResult
	now := m.now()

	if m.retention > 0 {
		stale, err := m.store.ListInactiveSince(ctx, now.Add(-m.retention))
		if err != nil {
			return out, err
		}
		for _, sub := range stale {
			changed, err := m.store.Deactivate(ctx, sub.ID, ReasonCleanup, now)
			if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
				return out, err
			}
			if changed {
				out.Deactivated++
			}
		}
	}

	if m.purgeAfter > 0 {
		n, err := m.store.Purge(ctx, now.Add(-m.purgeAfter))
		if err != nil {
			return out, err
		}
		out.Purged = n
	}

	if out.Deactivated > 0 || out.Purged > 0 {
		m.logger.LogAttrs(ctx, slog.LevelInfo, "push subscriptions swept",
			slog.Int("deactivated", out.Deactivated),
			slog.Int("purged", out.Purged),
		)
	}
	return out, nil
}

// SweepTask adapts Sweep to a periodic maintenance task.
func (m *Manager) SweepTask() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := m.Sweep(ctx)
		return err
	}
}
