package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arun0009/mathapp/internal/calc"
	"github.com/arun0009/mathapp/internal/metrics"
)

// appMetrics are the request and calculation series served on /metrics.
type appMetrics struct {
	requestDuration    *metrics.HistogramVec
	requestsTotal      *metrics.CounterVec
	calculationErrors  *metrics.CounterVec
	calculationsTotal  *metrics.CounterVec
	calculationLatency *metrics.HistogramVec
	concurrentRequests *metrics.GaugeVec

	inFlight *metrics.Gauge
}

// newAppMetrics creates the metrics and registers them with reg in
// exposition order.
func newAppMetrics(reg *metrics.Registry) (*appMetrics, error) {
	m := &appMetrics{
		requestDuration: metrics.NewHistogramVec(
			metrics.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "path", "status_code"},
		),
		requestsTotal: metrics.NewCounterVec(
			metrics.Opts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		calculationErrors: metrics.NewCounterVec(
			metrics.Opts{
				Name: "calculation_errors_total",
				Help: "Total number of calculation errors",
			},
			[]string{"error_type"},
		),
		calculationsTotal: metrics.NewCounter(
			metrics.Opts{
				Name: "calculations_total",
				Help: "Total number of calculations performed",
			},
		),
		calculationLatency: metrics.NewHistogramVec(
			metrics.HistogramOpts{
				Name:    "calculation_duration_seconds",
				Help:    "Duration of calculation operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		concurrentRequests: metrics.NewGauge(
			metrics.Opts{
				Name: "http_concurrent_requests",
				Help: "Number of concurrent HTTP requests",
			},
		),
	}

	for _, metric := range []metrics.Metric{
		m.requestDuration,
		m.requestsTotal,
		m.calculationErrors,
		m.calculationsTotal,
		m.calculationLatency,
		m.concurrentRequests,
	} {
		if err := reg.Register(metric); err != nil {
			return nil, fmt.Errorf("register %s: %w", metric.Name(), err)
		}
	}
	m.inFlight = m.concurrentRequests.WithLabelValues()
	return m, nil
}

// observeRequest records one completed request.
func (m *appMetrics) observeRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
	m.requestsTotal.WithLabelValues(method, path, code).Inc()
}

func (m *appMetrics) calcMetrics() calc.Metrics {
	return calc.Metrics{
		Calculations: m.calculationsTotal,
		Duration:     m.calculationLatency,
		Errors:       m.calculationErrors,
	}
}
