package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vulnscan", cfg.App.Name)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Scheduler.TickInterval)
	assert.Equal(t, 50, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5, cfg.Dispatcher.Concurrency)
	assert.Equal(t, 5, cfg.Dispatcher.MaxRetry)
	assert.Equal(t, 10*time.Second, cfg.Webhook.DeliveryTimeout)
	assert.False(t, cfg.SMTP.IsConfigured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "30s")
	t.Setenv("DISPATCHER_CONCURRENCY", "10")
	t.Setenv("WEBHOOK_RATE_PER_SECOND", "5.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 10, cfg.Dispatcher.Concurrency)
	assert.Equal(t, 5.5, cfg.Webhook.RatePerSecond)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Scheduler.TickInterval)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("rejects bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects missing db host", func(t *testing.T) {
		cfg := base()
		cfg.Database.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects sub-second tick interval", func(t *testing.T) {
		cfg := base()
		cfg.Scheduler.TickInterval = 100 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero concurrency", func(t *testing.T) {
		cfg := base()
		cfg.Dispatcher.Concurrency = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		cfg := base()
		cfg.Log.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires ssl", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = EnvProduction
		cfg.Database.SSLMode = "disable"
		assert.Error(t, cfg.Validate())

		cfg.Database.SSLMode = "require"
		assert.NoError(t, cfg.Validate())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "pw", Name: "scans", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=scans sslmode=require", cfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis", Port: 6379}
	assert.Equal(t, "redis:6379", cfg.Addr())
}
