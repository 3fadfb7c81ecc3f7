package api

import (
	"net/http"
	"strconv"

	"github.com/ezyang/ghsim/internal/ratelimit"
	"github.com/ezyang/ghsim/pkg/models"
)

// RateLimitMiddleware enforces the per-account login request budget.
func RateLimitMiddleware(limiter *ratelimit.Limiter, requestsPerHour int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := accountFromRequest(r)
			if account == "" {
				// No account identifier, nothing to key the limit on.
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(account) {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
					Error: "rate limit exceeded for account " + account,
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens(account))))
			next.ServeHTTP(w, r)
		})
	}
}

// accountFromRequest extracts the account the request acts on. The request
// body is not consulted; callers identify the account via query parameter or
// header.
func accountFromRequest(r *http.Request) string {
	if account := r.URL.Query().Get("account"); account != "" {
		return account
	}
	return r.Header.Get("X-Ghsim-Account")
}
