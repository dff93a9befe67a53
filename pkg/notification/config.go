package notification

import "time"

// Config controls the retention sweep.
type Config struct {
	RetentionRead     time.Duration `env:"NOTIFICATION_RETENTION_READ" envDefault:"2160h"`     // read notifications older than this are purged
	RetentionArchived time.Duration `env:"NOTIFICATION_RETENTION_ARCHIVED" envDefault:"4320h"` // archived notifications older than this are purged
	RetentionDeleted  time.Duration `env:"NOTIFICATION_RETENTION_DELETED" envDefault:"720h"`   // soft-deleted notifications older than this are purged
	PurgeAt           string        `env:"NOTIFICATION_PURGE_AT" envDefault:"03:00"`           // daily purge time, HH:MM in UTC
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		RetentionRead:     90 * 24 * time.Hour,
		RetentionArchived: 180 * 24 * time.Hour,
		RetentionDeleted:  30 * 24 * time.Hour,
		PurgeAt:           "03:00",
	}
}
