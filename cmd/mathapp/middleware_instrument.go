package main

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arun0009/mathapp/internal/metrics"
)

type inFlightKey struct{}

// inFlight is one request's hold on the in-flight gauge. It is taken at
// most once and released only if taken.
type inFlight struct {
	gauge *metrics.Gauge
	held  atomic.Bool
}

func (f *inFlight) acquire() {
	if f.held.CompareAndSwap(false, true) {
		f.gauge.Inc()
	}
}

func (f *inFlight) release() {
	if f.held.CompareAndSwap(true, false) {
		f.gauge.Dec()
	}
}

// acquireInFlight counts the request in the in-flight gauge if the
// instrumentation middleware deferred that to the handler.
func acquireInFlight(ctx context.Context) {
	if f, ok := ctx.Value(inFlightKey{}).(*inFlight); ok {
		f.acquire()
	}
}

// instrumentMiddleware times every request and keeps the in-flight gauge.
// Completion bookkeeping runs in a deferred func, so it happens exactly once
// whether the handler returns, writes an error, panics or loses its client.
// A metrics scrape joins the gauge only after rendering, so it never reports
// itself.
func (s *server) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		flight := &inFlight{gauge: s.metrics.inFlight}
		if isMetricsScrape(r) {
			r = r.WithContext(context.WithValue(r.Context(), inFlightKey{}, flight))
		} else {
			flight.acquire()
		}
		rw := newResponseWriter(w)

		defer func() {
			rec := recover()
			if rec != nil && rec != http.ErrAbortHandler {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				if !rw.written {
					writeText(rw, http.StatusInternalServerError, msgInternalError)
				}
			}

			s.metrics.observeRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
			flight.release()

			if rec == http.ErrAbortHandler {
				panic(rec)
			}
		}()

		next.ServeHTTP(rw, r)
	})
}

func isMetricsScrape(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == metricsPath
}
