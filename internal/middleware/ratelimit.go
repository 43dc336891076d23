package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

type limitedResponse struct {
	Error string `json:"error"`
}

// NewLimiter returns nil when rps <= 0, which RateLimitMiddleware treats as "off".
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimitMiddleware shares one token bucket across all clients. Requests
// whose path is listed in exempt (probes, scrapes) never spend a token.
func RateLimitMiddleware(l *rate.Limiter, exempt ...string) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	retryAfter := strconv.Itoa(retrySeconds(l.Limit()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || l.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Content-Type", "application/json")
			h.Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(limitedResponse{Error: "Too many requests"})
		})
	}
}

// retrySeconds is the time for one token to refill, rounded up to a whole second.
func retrySeconds(limit rate.Limit) int {
	if limit <= 0 || limit == rate.Inf {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(limit))))
}
