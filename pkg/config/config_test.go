package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.App.Addr())
	assert.Equal(t, 3*time.Second, cfg.Broadcast.PollInterval())
	assert.Equal(t, []string{"AAPL"}, cfg.Broadcast.DefaultSymbols)
	assert.Equal(t, 100, cfg.Broadcast.EvictAfterTicks)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Redis.TTL())
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "price_ticks", cfg.Kafka.Topic)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("BROADCAST_POLL_INTERVAL_MS", "250")
	t.Setenv("BROADCAST_DEFAULT_SYMBOLS", "MSFT,TSLA")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.Broadcast.PollInterval())
	assert.Equal(t, []string{"MSFT", "TSLA"}, cfg.Broadcast.DefaultSymbols)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadConfig_ShortAliases(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("POLL_INTERVAL_MS", "1000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.App.Addr())
	assert.Equal(t, time.Second, cfg.Broadcast.PollInterval())
}

func TestLoadConfig_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "0")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "poll interval")
}

func TestLoadConfig_RejectsNegativeEviction(t *testing.T) {
	t.Setenv("BROADCAST_EVICT_AFTER_TICKS", "-1")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "evict_after_ticks")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggerConfig{Level: "loud", Encoding: "json"})
	assert.Error(t, err)
}
