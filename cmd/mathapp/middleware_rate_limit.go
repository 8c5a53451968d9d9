package main

import (
	"net/http"
)

// rateLimitMiddleware enforces the global rate limiter. It sits inside the
// instrumentation wrapper, so rejected requests still show up as 429s.
func (s *server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			// Set headers before writing status/body
			w.Header().Set("Retry-After", "1")
			writeText(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
