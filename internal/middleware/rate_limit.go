package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration for one route class
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Each route class gets its own limiter so, for example, a burst against
// the API surface cannot exhaust the login budget.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	window := config.Window
	if window <= 0 {
		window = 1 * time.Minute
	}
	return httprate.Limit(
		config.RequestsPerWindow,
		window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Rate limit exceeded"}`))
		}),
	)
}
