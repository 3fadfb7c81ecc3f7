package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter enforces per-account request rates on the login endpoints. Login
// attempts are expensive (each one drives a real browser), so the budget is
// counted per hour.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewLimiter builds a limiter allowing requestsPerHour sustained requests
// per account with the given burst.
func NewLimiter(requestsPerHour, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
	}
}

func (l *Limiter) limiter(account string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[account]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[account] = lim
	}
	return lim
}

// Allow reports whether the account may make another request now.
func (l *Limiter) Allow(account string) bool {
	return l.limiter(account).Allow()
}

// Tokens returns the account's remaining burst budget.
func (l *Limiter) Tokens(account string) float64 {
	return l.limiter(account).Tokens()
}
