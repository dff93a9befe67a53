package queue

import "time"

// Config holds the dispatch queue settings.
type Config struct {
	MaxAttempts       int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase       time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"5s"`
	BackoffMax        time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"1h"`
	DelayHigh         time.Duration `env:"QUEUE_DELAY_HIGH" envDefault:"0s"`
	DelayNormal       time.Duration `env:"QUEUE_DELAY_NORMAL" envDefault:"0s"`
	DelayLow          time.Duration `env:"QUEUE_DELAY_LOW" envDefault:"0s"`
	BatchDelay        time.Duration `env:"QUEUE_BATCH_DELAY" envDefault:"5m"`
	KeepCompleted     int           `env:"QUEUE_KEEP_COMPLETED" envDefault:"50"`
	KeepFailed        int           `env:"QUEUE_KEEP_FAILED" envDefault:"100"`
	PollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout       time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"1m"`
	JobTimeout        time.Duration `env:"QUEUE_JOB_TIMEOUT" envDefault:"5m"`
	WorkersPerChannel int           `env:"QUEUE_WORKERS_PER_CHANNEL" envDefault:"4"`

	// Every StarvationEvery-th claim on a channel takes the oldest eligible
	// job regardless of tier. Zero disables aging.
	StarvationEvery int `env:"QUEUE_STARVATION_EVERY" envDefault:"5"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BackoffBase:       5 * time.Second,
		BackoffMax:        time.Hour,
		BatchDelay:        5 * time.Minute,
		KeepCompleted:     50,
		KeepFailed:        100,
		PollInterval:      time.Second,
		LockTimeout:       time.Minute,
		JobTimeout:        5 * time.Minute,
		WorkersPerChannel: 4,
		StarvationEvery:   5,
	}
}

// DelayFor returns the default delay of a tier.
func (c Config) DelayFor(t Tier) time.Duration {
	switch t {
	case TierHigh:
		return c.DelayHigh
	case TierLow:
		return c.DelayLow
	default:
		return c.DelayNormal
	}
}
