package preference

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notification"
)

// Reason explains a policy decision.
type Reason string

const (
	ReasonAllowed        Reason = "allowed"
	ReasonGlobalOff      Reason = "global_toggle_off"
	ReasonCategoryOff    Reason = "category_channel_off"
	ReasonQuietHours     Reason = "quiet_hours"
	ReasonUrgentOverride Reason = "urgent_during_quiet_hours"
	ReasonFailOpen       Reason = "evaluation_failed_open"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// DefaultUrgent are the categories that bypass quiet hours.
var DefaultUrgent = []notification.Category{notification.CategorySystem, notification.CategorySecurity}

// Evaluate applies the policy to a loaded document at time at. fallback is
// the quiet-hours timezone for documents without one.
func Evaluate(p Preferences, category notification.Category, channel notification.Channel, at time.Time, fallback *time.Location, urgent ...notification.Category) Decision {
	if !p.Global(channel) {
		return Decision{Allowed: false, Reason: ReasonGlobalOff}
	}
	if flags, ok := p.Categories[category]; ok {
		if f := flags.Flag(channel); f != nil && !*f {
			return Decision{Allowed: false, Reason: ReasonCategoryOff}
		}
	}
	if InQuietHours(p.QuietHours, at, fallback) {
		if isUrgent(category, urgent) {
			return Decision{Allowed: true, Reason: ReasonUrgentOverride}
		}
		return Decision{Allowed: false, Reason: ReasonQuietHours}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

func isUrgent(c notification.Category, urgent []notification.Category) bool {
	if urgent == nil {
		urgent = DefaultUrgent
	}
	for _, u := range urgent {
		if u == c {
			return true
		}
	}
	return false
}

// Engine loads preferences and evaluates the policy. It never returns an
// error: failures resolve to allowed.
type Engine struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	location *time.Location
	urgent   []notification.Category
	defaults Preferences
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngineClock overrides time.Now.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the timezone of documents that do not name one.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithDefaults sets the document of users that have none, usually
// Config.Defaults.
func WithDefaults(p Preferences) EngineOption {
	return func(e *Engine) {
		e.defaults = p.Clone()
	}
}

// WithUrgentCategories replaces DefaultUrgent.
func WithUrgentCategories(cats ...notification.Category) EngineOption {
	return func(e *Engine) {
		e.urgent = cats
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	if store == nil {
		panic(ErrStoreNil)
	}
	e := &Engine{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		location: time.UTC,
		urgent:   DefaultUrgent,
		defaults: Defaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsAllowed reports whether a notification of category may be delivered to
// userID on channel right now.
func (e *Engine) IsAllowed(ctx context.Context, userID string, category notification.Category, channel notification.Channel) bool {
	return e.Decide(ctx, userID, category, channel).Allowed
}

// Decide is IsAllowed with the reason attached.
func (e *Engine) Decide(ctx context.Context, userID string, category notification.Category, channel notification.Channel) Decision {
	p, ok := e.load(ctx, userID)
	if !ok {
		return Decision{Allowed: true, Reason: ReasonFailOpen}
	}
	return Evaluate(p, category, channel, e.now(), e.location, e.urgent...)
}

// AllowedChannels filters channels with a single preference read.
func (e *Engine) AllowedChannels(ctx context.Context, userID string, category notification.Category, channels []notification.Channel) []notification.Channel {
	p, ok := e.load(ctx, userID)
	if !ok {
		return append([]notification.Channel(nil), channels...)
	}
	now := e.now()
	allowed := make([]notification.Channel, 0, len(channels))
	for _, ch := range channels {
		d := Evaluate(p, category, ch, now, e.location, e.urgent...)
		if d.Allowed {
			allowed = append(allowed, ch)
			continue
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "channel denied by preferences",
			logger.UserID(userID),
			logger.Category(string(category)),
			logger.Channel(string(ch)),
			slog.String("reason", string(d.Reason)),
		)
	}
	return allowed
}

// load returns the user's document, defaults when there is none, and false
// when the store failed.
func (e *Engine) load(ctx context.Context, userID string) (Preferences, bool) {
	p, err := e.store.Get(ctx, userID)
	if err == nil {
		return p, true
	}
	if errors.Is(err, ErrNotFound) {
		p = e.defaults.Clone()
		p.UserID = userID
		return p, true
	}
	e.logger.LogAttrs(ctx, slog.LevelError, "preference lookup failed, allowing delivery",
		logger.UserID(userID),
		logger.Error(errors.Join(ErrPolicyEvaluation, err)),
	)
	return Preferences{}, false
}
