package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/config"
)

type heartbeatConfig struct {
	Interval time.Duration `env:"TEST_HEARTBEAT_INTERVAL" envDefault:"25s"`
	Timeout  time.Duration `env:"TEST_HEARTBEAT_TIMEOUT" envDefault:"60s"`
}

type retryConfig struct {
	MaxAttempts int `env:"TEST_MAX_ATTEMPTS" envDefault:"3"`
}

type requiredConfig struct {
	Secret string `env:"TEST_REQUIRED_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults and overrides", func(t *testing.T) {
		t.Setenv("TEST_HEARTBEAT_TIMEOUT", "10s")

		var cfg heartbeatConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 25*time.Second, cfg.Interval)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
	})

	t.Run("cached per type", func(t *testing.T) {
		t.Setenv("TEST_MAX_ATTEMPTS", "5")
		var first retryConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TEST_MAX_ATTEMPTS", "9")
		var second retryConfig
		require.NoError(t, config.Load(&second))

		assert.Equal(t, 5, first.MaxAttempts)
		assert.Equal(t, first, second)
	})

	t.Run("missing required value", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[retryConfig](nil), config.ErrNilPointer)
	})
}
