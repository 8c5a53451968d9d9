package main

import (
	"log"
	"net/http"
	"time"
)

// loggingMiddleware logs a line when a request arrives and another with the
// status and duration when it completes.
func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	if !s.cfg.LogRequests && !s.cfg.LogHeaders {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")

		if s.cfg.LogRequests {
			log.Printf("%s %s %s [%s]", r.RemoteAddr, r.Method, r.URL.Path, requestID)
		}
		if s.cfg.LogHeaders {
			log.Printf("Headers: %+v", r.Header)
		}

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if s.cfg.LogRequests {
			log.Printf("%s %s %s [%s] - %d %v", r.RemoteAddr, r.Method, r.URL.Path, requestID, rw.statusCode, time.Since(start))
		}
	})
}
