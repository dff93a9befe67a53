package pushsub

import "time"

// Config holds push delivery and retention settings.
type Config struct {
	Retention  time.Duration `env:"PUSH_SUBSCRIPTION_RETENTION" envDefault:"720h"` // silent subscriptions older than this are deactivated by Sweep
	PurgeAfter time.Duration `env:"PUSH_INACTIVE_PURGE_AFTER" envDefault:"2160h"`  // deactivated subscriptions older than this are deleted by Sweep

	VAPIDPublicKey  string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string        `env:"VAPID_SUBJECT" envDefault:"mailto:notifications@example.com"`
	TTL             time.Duration `env:"PUSH_TTL" envDefault:"24h"`

	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"` // empty disables fcm: endpoints

	SendConcurrency int           `env:"PUSH_SEND_CONCURRENCY" envDefault:"8"`
	SweepInterval   time.Duration `env:"PUSH_SWEEP_INTERVAL" envDefault:"1h"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Retention:       720 * time.Hour,
		PurgeAfter:      2160 * time.Hour,
		VAPIDSubject:    "mailto:notifications@example.com",
		TTL:             24 * time.Hour,
		SendConcurrency: 8,
		SweepInterval:   time.Hour,
	}
}
