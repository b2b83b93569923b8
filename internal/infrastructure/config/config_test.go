package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FETCH_USER_AGENT", "ci-bot/2.0")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_RATE_LIMIT_RPS", "2.5")
	t.Setenv("FETCH_RATE_BURST", "4")
	t.Setenv("FETCH_COMPRESSION", "false")
	t.Setenv("FETCH_PROXY", "http://proxy.internal:3128")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("FETCH_BREAKER_THRESHOLD", "0")
	t.Setenv("FETCH_BREAKER_COOLDOWN", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ci-bot/2.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2.5, cfg.Fetch.RateLimitRPS)
	assert.Equal(t, 4, cfg.Fetch.RateBurst)
	assert.False(t, cfg.Fetch.Compression)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Zero(t, cfg.Fetch.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Fetch.BreakerCooldown)

	proxy, err := cfg.Fetch.ProxyURL()
	require.NoError(t, err)
	assert.Equal(t, "proxy.internal:3128", proxy.Host)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("FETCH_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
		assert.Equal(t, Default(), LoadOrDefault())
	})

	t.Run("negative timeout", func(t *testing.T) {
		t.Setenv("FETCH_TIMEOUT", "-1s")
		_, err := Load()
		assert.ErrorContains(t, err, "FETCH_TIMEOUT")
	})

	t.Run("relative proxy", func(t *testing.T) {
		t.Setenv("FETCH_PROXY", "proxy.internal")
		_, err := Load()
		assert.ErrorContains(t, err, "FETCH_PROXY")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Fetch.RateLimitRPS = -1
	cfg.Fetch.RateBurst = -1
	cfg.Fetch.BreakerThreshold = -2
	cfg.Metrics.Enabled = true
	cfg.Metrics.File = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "FETCH_RATE_LIMIT_RPS")
	assert.ErrorContains(t, err, "FETCH_RATE_BURST")
	assert.ErrorContains(t, err, "METRICS_FILE")
	assert.ErrorContains(t, err, "FETCH_BREAKER_THRESHOLD")

	assert.NoError(t, Default().Validate())
}
