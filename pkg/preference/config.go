package preference

import "time"

// Config holds the policy engine settings.
type Config struct {
	QuietHoursStart string        `env:"QUIET_HOURS_START" envDefault:"22:00"`      // default window start for new documents
	QuietHoursEnd   string        `env:"QUIET_HOURS_END" envDefault:"08:00"`        // default window end for new documents
	CacheSize       int           `env:"PREFERENCE_CACHE_SIZE" envDefault:"10000"` // cached documents; 0 disables the cache
	CacheTTL        time.Duration `env:"PREFERENCE_CACHE_TTL" envDefault:"1m"`
	Timezone        string        `env:"PREFERENCE_TIMEZONE" envDefault:"UTC"` // quiet hours timezone when a document has none
	Collection      string        `env:"PREFERENCE_COLLECTION" envDefault:"preferences"`
}

// Defaults returns Defaults with the configured quiet hours window. Invalid
// clock values keep the built-in window.
func (c Config) Defaults() Preferences {
	p := Defaults()
	if validClock(c.QuietHoursStart) {
		p.QuietHours.Start = c.QuietHoursStart
	}
	if validClock(c.QuietHoursEnd) {
		p.QuietHours.End = c.QuietHoursEnd
	}
	return p
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
