package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ezyang/ghsim/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes(limiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	auth := r.PathPrefix("/v1/auth").Subrouter()

	// Login operations drive a real browser; rate limited per account.
	limited := auth.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(limiter, requestsPerHour))
	limited.HandleFunc("/login/start", h.StartLogin).Methods("POST")
	limited.HandleFunc("/login/credentials", h.SubmitCredentials).Methods("POST")
	limited.HandleFunc("/login/2fa", h.SubmitTwoFactor).Methods("POST")
	limited.HandleFunc("/login/mobile-wait", h.WaitMobile).Methods("POST")

	// Cancellation and reads are cheap; not rate limited.
	auth.HandleFunc("/login/cancel", h.CancelLogin).Methods("POST")
	auth.HandleFunc("/login/status/{id}", h.GetStatus).Methods("GET")
	auth.HandleFunc("/login/{id}/watch", h.WatchLogin).Methods("GET")
	auth.HandleFunc("/login/{id}/screenshot", h.GetScreenshot).Methods("GET")
	auth.HandleFunc("/needs-login", h.NeedsLogin).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Ghsim-Account")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
