// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// LoginURL is the remote login page new sessions start on.
	LoginURL string

	// BaseURL is the remote site origin, used for post-login navigation.
	BaseURL string

	// Headless controls whether Chromium runs without a window.
	Headless bool

	// AuthDBPath is the bolt database holding persisted auth state.
	AuthDBPath string

	// ScreenshotDir receives diagnostic screenshots.
	ScreenshotDir string

	// SessionTTL is how long a login session may exist before it is swept.
	SessionTTL time.Duration

	// MaxSessionsPerAccount caps concurrent login sessions per account.
	MaxSessionsPerAccount int64

	// LoginRatePerHour / LoginRateBurst bound login requests per account.
	LoginRatePerHour int
	LoginRateBurst   int
}

// FromEnv builds a Config from GHSIM_* environment variables, applying
// defaults for anything unset.
func FromEnv() Config {
	return Config{
		Addr:                  getenv("GHSIM_ADDR", ":8080"),
		LoginURL:              getenv("GHSIM_LOGIN_URL", "https://github.com/login"),
		BaseURL:               getenv("GHSIM_BASE_URL", "https://github.com"),
		Headless:              getenv("GHSIM_HEADLESS", "1") == "1",
		AuthDBPath:            getenv("GHSIM_AUTH_DB", "./storage/authstate.db"),
		ScreenshotDir:         getenv("GHSIM_SCREENSHOT_DIR", os.TempDir()),
		SessionTTL:            getduration("GHSIM_SESSION_TTL", 15*time.Minute),
		MaxSessionsPerAccount: int64(getint("GHSIM_MAX_SESSIONS_PER_ACCOUNT", 3)),
		LoginRatePerHour:      getint("GHSIM_LOGIN_RATE_PER_HOUR", 100),
		LoginRateBurst:        getint("GHSIM_LOGIN_RATE_BURST", 10),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
