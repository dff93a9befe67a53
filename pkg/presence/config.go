package presence

import "time"

// Config holds the real-time transport settings.
type Config struct {
	HeartbeatInterval time.Duration `env:"PRESENCE_HEARTBEAT_INTERVAL" envDefault:"25s"`
	HeartbeatTimeout  time.Duration `env:"PRESENCE_HEARTBEAT_TIMEOUT" envDefault:"60s"` // sessions silent for longer are dropped
	SendBuffer        int           `env:"PRESENCE_SEND_BUFFER" envDefault:"64"`        // outgoing events queued per session
	WriteTimeout      time.Duration `env:"PRESENCE_WRITE_TIMEOUT" envDefault:"10s"`
	MaxMessageSize    int64         `env:"PRESENCE_MAX_MESSAGE_SIZE" envDefault:"4096"`
	JWTSecret         string        `env:"PRESENCE_JWT_SECRET"`
	AllowedOrigins    []string      `env:"PRESENCE_ALLOWED_ORIGINS" envSeparator:","` // empty allows any origin
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 25 * time.Second,
		HeartbeatTimeout:  60 * time.Second,
		SendBuffer:        64,
		WriteTimeout:      10 * time.Second,
		MaxMessageSize:    4096,
	}
}
