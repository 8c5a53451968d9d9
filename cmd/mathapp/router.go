package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arun0009/mathapp/internal/calc"
)

const metricsPath = "/metrics"

// routes builds the router and wraps it in the middleware chain. The
// instrumentation wrapper is outermost so that 404s, rate-limited requests
// and the metrics scrape are all measured.
func (s *server) routes() http.Handler {
	router := mux.NewRouter()
	router.SkipClean(true)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFoundHandler)

	// Prometheus metrics
	router.HandleFunc(metricsPath, s.metricsHandler).Methods(http.MethodGet)

	// Arithmetic endpoints
	for _, op := range calc.Ops {
		router.HandleFunc("/"+string(op), s.calcHandler(op)).Methods(http.MethodGet)
	}

	if s.cfg.EnableWebSocket {
		router.HandleFunc("/ws", s.websocketHandler).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	if s.limiter != nil {
		handler = s.rateLimitMiddleware(handler)
	}
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	return s.instrumentMiddleware(handler)
}
