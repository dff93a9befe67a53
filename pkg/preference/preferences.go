package preference

import (
	"maps"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/notification"
)

// Digest is how often batched summaries are sent.
type Digest string

const (
	DigestOff    Digest = "off"
	DigestDaily  Digest = "daily"
	DigestWeekly Digest = "weekly"
)

func (d Digest) valid() bool {
	return d == DigestOff || d == DigestDaily || d == DigestWeekly
}

// ChannelFlags are the per-category channel switches. A nil flag is
// unconfigured and counts as allowed.
type ChannelFlags struct {
	Email *bool `json:"email,omitempty" bson:"email,omitempty"`
	Push  *bool `json:"push,omitempty" bson:"push,omitempty"`
	InApp *bool `json:"inApp,omitempty" bson:"in_app,omitempty"`
}

// Flag returns the switch of ch, or nil when unset.
func (f ChannelFlags) Flag(ch notification.Channel) *bool {
	switch ch {
	case notification.ChannelEmail:
		return f.Email
	case notification.ChannelPush:
		return f.Push
	case notification.ChannelInApp:
		return f.InApp
	}
	return nil
}

// QuietHours is a daily window, in Timezone, during which non-urgent
// notifications are held back. Start after End means the window spans
// midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled" bson:"enabled"`
	Start    string `json:"start" bson:"start,omitempty"` // HH:MM
	End      string `json:"end" bson:"end,omitempty"`     // HH:MM
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`
}

// Preferences is a user's full, defaults-merged policy document.
type Preferences struct {
	UserID     string                                 `json:"userId"`
	Email      bool                                   `json:"email"`
	Push       bool                                   `json:"push"`
	InApp      bool                                   `json:"inApp"`
	Categories map[notification.Category]ChannelFlags `json:"categories"`
	Digest     Digest                                 `json:"digest"`
	QuietHours QuietHours                             `json:"quietHours"`
	UpdatedAt  time.Time                              `json:"updatedAt"`
}

// Global returns the global toggle of ch. Unknown channels are on.
func (p Preferences) Global(ch notification.Channel) bool {
	switch ch {
	case notification.ChannelEmail:
		return p.Email
	case notification.ChannelPush:
		return p.Push
	case notification.ChannelInApp:
		return p.InApp
	}
	return true
}

func flag(v bool) *bool { return &v }

// Defaults returns a fresh copy of the built-in document. Marketing is
// opt-in for email and push.
func Defaults() Preferences {
	all := ChannelFlags{Email: flag(true), Push: flag(true), InApp: flag(true)}
	return Preferences{
		Email: true,
		Push:  true,
		InApp: true,
		Categories: map[notification.Category]ChannelFlags{
			notification.CategoryLikes:     all.clone(),
			notification.CategoryComments:  all.clone(),
			notification.CategoryFollows:   all.clone(),
			notification.CategoryUploads:   all.clone(),
			notification.CategorySystem:    all.clone(),
			notification.CategoryMarketing: {Email: flag(false), Push: flag(false), InApp: flag(true)},
		},
		Digest: DigestOff,
		QuietHours: QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
	}
}

// DefaultsFor returns Defaults bound to userID.
func DefaultsFor(userID string) Preferences {
	p := Defaults()
	p.UserID = userID
	return p
}

func (f ChannelFlags) clone() ChannelFlags {
	c := ChannelFlags{}
	if f.Email != nil {
		c.Email = flag(*f.Email)
	}
	if f.Push != nil {
		c.Push = flag(*f.Push)
	}
	if f.InApp != nil {
		c.InApp = flag(*f.InApp)
	}
	return c
}

// overlay sets the flags of o that are configured.
func (f ChannelFlags) overlay(o ChannelFlags) ChannelFlags {
	c := f.clone()
	if o.Email != nil {
		c.Email = flag(*o.Email)
	}
	if o.Push != nil {
		c.Push = flag(*o.Push)
	}
	if o.InApp != nil {
		c.InApp = flag(*o.InApp)
	}
	return c
}

// Clone deep-copies p.
func (p Preferences) Clone() Preferences {
	c := p
	c.Categories = make(map[notification.Category]ChannelFlags, len(p.Categories))
	for k, v := range p.Categories {
		c.Categories[k] = v.clone()
	}
	return c
}

// Merge overlays the configured parts of partial onto base. Category
// matrices merge per flag, so a partial category keeps base's other flags.
func Merge(base Preferences, partial Partial) Preferences {
	out := base.Clone()
	if partial.Email != nil {
		out.Email = *partial.Email
	}
	if partial.Push != nil {
		out.Push = *partial.Push
	}
	if partial.InApp != nil {
		out.InApp = *partial.InApp
	}
	for cat, flags := range partial.Categories {
		out.Categories[cat] = out.Categories[cat].overlay(flags)
	}
	if partial.Digest != nil && partial.Digest.valid() {
		out.Digest = *partial.Digest
	}
	if q := partial.QuietHours; q != nil {
		if q.Enabled != nil {
			out.QuietHours.Enabled = *q.Enabled
		}
		if q.Start != nil && validClock(*q.Start) {
			out.QuietHours.Start = *q.Start
		}
		if q.End != nil && validClock(*q.End) {
			out.QuietHours.End = *q.End
		}
		if q.Timezone != nil && validTimezone(*q.Timezone) {
			out.QuietHours.Timezone = *q.Timezone
		}
	}
	return out
}

// Partial is a sparse preference document: nil fields are not set.
type Partial struct {
	Email      *bool                                  `bson:"email,omitempty"`
	Push       *bool                                  `bson:"push,omitempty"`
	InApp      *bool                                  `bson:"in_app,omitempty"`
	Categories map[notification.Category]ChannelFlags `bson:"categories,omitempty"`
	Digest     *Digest                                `bson:"digest,omitempty"`
	QuietHours *PartialQuietHours                     `bson:"quiet_hours,omitempty"`
}

// PartialQuietHours is the sparse form of QuietHours.
type PartialQuietHours struct {
	Enabled  *bool   `bson:"enabled,omitempty"`
	Start    *string `bson:"start,omitempty"`
	End      *string `bson:"end,omitempty"`
	Timezone *string `bson:"timezone,omitempty"`
}

// Full converts p to a Partial where every field is set.
func (p Preferences) Full() Partial {
	digest := p.Digest
	q := p.QuietHours
	return Partial{
		Email:      flag(p.Email),
		Push:       flag(p.Push),
		InApp:      flag(p.InApp),
		Categories: maps.Clone(p.Clone().Categories),
		Digest:     &digest,
		QuietHours: &PartialQuietHours{
			Enabled:  flag(q.Enabled),
			Start:    &q.Start,
			End:      &q.End,
			Timezone: &q.Timezone,
		},
	}
}
