package main

import (
	"bytes"
	"log"
	"net/http"
)

// metricsHandler renders the registry. The whole exposition is buffered so
// a render failure can still be answered with a clean 500. The scrape is
// counted in flight once the snapshot is taken.
func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := s.registry.WriteTo(&buf)
	acquireInFlight(r.Context())
	if err != nil {
		log.Printf("Error collecting metrics: %v", err)
		writeText(w, http.StatusInternalServerError, msgMetricsError)
		return
	}
	w.Header().Set("Content-Type", s.registry.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
