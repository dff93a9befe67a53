package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
	"github.com/dmitrymomot/notifyhub/pkg/queue"
)

// Creator persists notifications.
type Creator interface {
	Create(ctx context.Context, p notification.CreateParams) (notification.Notification, error)
}

// Policy decides whether a channel may be used. Implementations resolve
// their own failures; Dispatch never sees a policy error.
type Policy interface {
	IsAllowed(ctx context.Context, userID string, category notification.Category, channel notification.Channel) bool
}

// Enqueuer schedules delivery jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, channel string, payload any, opts ...queue.EnqueueOption) (queue.JobHandle, error)
}

// Presence delivers events to live sessions.
type Presence interface {
	SendToUser(ctx context.Context, userID, event string, data any) bool
}

// Orchestrator creates notifications and fans them out.
type Orchestrator struct {
	notifications    Creator
	policy           Policy
	enqueuer         Enqueuer
	presence         Presence
	realtimeFallback bool
	logger           *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy gates channels through p. Without it every channel is allowed.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithPresence enables immediate in-app delivery to live sessions.
func WithPresence(p Presence) Option {
	return func(o *Orchestrator) {
		o.presence = p
	}
}

// WithRealtimeFallback queues in-app delivery on the realtime channel when
// the recipient is offline, so a session opened before the job runs out of
// attempts still gets the event.
func WithRealtimeFallback(enabled bool) Option {
	return func(o *Orchestrator) {
		o.realtimeFallback = enabled
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewOrchestrator(notifications Creator, enqueuer Enqueuer, opts ...Option) (*Orchestrator, error) {
	if notifications == nil {
		return nil, ErrNotificationsNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	o := &Orchestrator{
		notifications: notifications,
		enqueuer:      enqueuer,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(logger.Component("dispatch"))
	return o, nil
}

// Dispatch persists the notification and delivers it on every allowed
// channel. Only persistence errors are returned; per-channel failures are
// reported in the results.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (notification.Notification, []ChannelResult, error) {
	n, err := o.notifications.Create(ctx, notification.CreateParams{
		UserID: req.Recipient,
		Type:   req.Type,
		Title:  req.Title,
		Body:   req.Body,
		Data:   req.Data,
	})
	if err != nil {
		return notification.Notification{}, nil, err
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = notification.Channels
	}
	channels = dedupe(channels)

	tier := TierFor(n.Category)
	if req.Tier != nil {
		tier = *req.Tier
	}
	payload := payloadOf(n)

	slots := make([]*ChannelResult, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		g.Go(func() error {
			if o.policy != nil && !o.policy.IsAllowed(ctx, n.UserID, n.Category, ch) {
				o.logger.LogAttrs(ctx, slog.LevelDebug, "channel denied by preferences",
					logger.NotificationID(n.ID),
					logger.UserID(n.UserID),
					logger.Channel(string(ch)),
				)
				return nil
			}
			res := o.deliver(ctx, n, payload, ch, tier)
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]ChannelResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return n, results, nil
}

func (o *Orchestrator) deliver(ctx context.Context, n notification.Notification, payload JobPayload, ch notification.Channel, tier queue.Tier) ChannelResult {
	res := ChannelResult{Channel: ch}

	switch ch {
	case notification.ChannelInApp:
		if o.presence != nil && o.presence.SendToUser(ctx, n.UserID, notification.EventNew, n) {
			res.Outcome = OutcomeDelivered
			return res
		}
		if !o.realtimeFallback {
			res.Outcome = OutcomeStored
			return res
		}
		return o.enqueue(ctx, res, QueueRealtime, payload, tier)

	case notification.ChannelPush:
		return o.enqueue(ctx, res, QueuePush, payload, tier)

	case notification.ChannelEmail:
		return o.enqueue(ctx, res, QueueEmail, payload, tier)

	default:
		return o.failed(ctx, res, n, fmt.Errorf("%w: %s", ErrUnknownChannel, ch))
	}
}

func (o *Orchestrator) enqueue(ctx context.Context, res ChannelResult, queueName string, payload JobPayload, tier queue.Tier) ChannelResult {
	opts := []queue.EnqueueOption{
		queue.WithTier(tier),
		queue.WithName(queueName + ".deliver"),
	}
	if tier == queue.TierLow && queueName != QueueRealtime {
		opts = append(opts, queue.WithBatchDelay())
	}

	h, err := o.enqueuer.Enqueue(ctx, queueName, payload, opts...)
	if err != nil {
		return o.failed(ctx, res, notification.Notification{ID: payload.NotificationID, UserID: payload.UserID}, err)
	}
	res.Outcome = OutcomeQueued
	res.JobID = h.ID.String()
	return res
}

func (o *Orchestrator) failed(ctx context.Context, res ChannelResult, n notification.Notification, err error) ChannelResult {
	o.logger.LogAttrs(ctx, slog.LevelError, "channel dispatch failed",
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
		logger.Channel(string(res.Channel)),
		logger.Error(err),
	)
	res.Outcome = OutcomeFailed
	res.Err = err
	res.Error = err.Error()
	return res
}

func dedupe(channels []notification.Channel) []notification.Channel {
	out := make([]notification.Channel, 0, len(channels))
	for _, ch := range channels {
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}
