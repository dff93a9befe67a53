package preference

import (
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/notification"
)

// Normalize turns a raw update document (decoded JSON) into a Partial.
// Fields of the wrong type or with invalid values are replaced by their
// default, never rejected; unknown keys are dropped.
func Normalize(raw map[string]any) Partial {
	def := Defaults()
	var p Partial

	if v, ok := raw["email"]; ok {
		p.Email = boolOr(v, def.Email)
	}
	if v, ok := raw["push"]; ok {
		p.Push = boolOr(v, def.Push)
	}
	if v, ok := raw["inApp"]; ok {
		p.InApp = boolOr(v, def.InApp)
	}

	if v, ok := raw["digest"]; ok {
		d := def.Digest
		if s, ok := v.(string); ok && Digest(s).valid() {
			d = Digest(s)
		}
		p.Digest = &d
	}

	if v, ok := raw["categories"]; ok {
		if cats, ok := v.(map[string]any); ok {
			p.Categories = make(map[notification.Category]ChannelFlags, len(cats))
			for name, rv := range cats {
				cat := notification.Category(name)
				flags, _ := rv.(map[string]any)
				p.Categories[cat] = normalizeFlags(flags, def.Categories[cat])
			}
		}
	}

	if v, ok := raw["quietHours"]; ok {
		q, _ := v.(map[string]any)
		p.QuietHours = normalizeQuietHours(q, def.QuietHours)
	}

	return p
}

func normalizeFlags(raw map[string]any, def ChannelFlags) ChannelFlags {
	var f ChannelFlags
	pick := func(key string, d *bool) *bool {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		if b, ok := v.(bool); ok {
			return flag(b)
		}
		if d == nil {
			return nil
		}
		return flag(*d)
	}
	f.Email = pick("email", def.Email)
	f.Push = pick("push", def.Push)
	f.InApp = pick("inApp", def.InApp)
	return f
}

func normalizeQuietHours(raw map[string]any, def QuietHours) *PartialQuietHours {
	q := &PartialQuietHours{}
	if v, ok := raw["enabled"]; ok {
		q.Enabled = boolOr(v, def.Enabled)
	}
	if v, ok := raw["start"]; ok {
		q.Start = clockOr(v, def.Start)
	}
	if v, ok := raw["end"]; ok {
		q.End = clockOr(v, def.End)
	}
	if v, ok := raw["timezone"]; ok {
		tz := def.Timezone
		if s, ok := v.(string); ok && validTimezone(s) {
			tz = s
		}
		q.Timezone = &tz
	}
	return q
}

func boolOr(v any, def bool) *bool {
	if b, ok := v.(bool); ok {
		return flag(b)
	}
	return flag(def)
}

func clockOr(v any, def string) *string {
	if s, ok := v.(string); ok && validClock(s) {
		return &s
	}
	return &def
}

func validTimezone(name string) bool {
	if name == "" {
		return true
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
