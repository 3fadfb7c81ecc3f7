package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "https://github.com/login", cfg.LoginURL)
	assert.Equal(t, "https://github.com", cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(3), cfg.MaxSessionsPerAccount)
	assert.Equal(t, 100, cfg.LoginRatePerHour)
	assert.Equal(t, 10, cfg.LoginRateBurst)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GHSIM_ADDR", ":9090")
	t.Setenv("GHSIM_LOGIN_URL", "https://github.example.test/login")
	t.Setenv("GHSIM_HEADLESS", "0")
	t.Setenv("GHSIM_SESSION_TTL", "30s")
	t.Setenv("GHSIM_MAX_SESSIONS_PER_ACCOUNT", "5")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://github.example.test/login", cfg.LoginURL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.SessionTTL)
	assert.Equal(t, int64(5), cfg.MaxSessionsPerAccount)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("GHSIM_SESSION_TTL", "soon")
	t.Setenv("GHSIM_LOGIN_RATE_PER_HOUR", "many")

	cfg := FromEnv()
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 100, cfg.LoginRatePerHour)
}
