package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/arun0009/mathapp/internal/calc"
	"github.com/arun0009/mathapp/internal/metrics"
)

// server carries everything a request needs. There is no package-level
// state; tests build as many servers as they like.
type server struct {
	cfg      Config
	registry *metrics.Registry
	metrics  *appMetrics
	executor *calc.Executor
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
}

// newRegistry creates the process registry, with runtime collectors when
// configured.
func newRegistry(cfg Config) *metrics.Registry {
	var opts []metrics.Option
	if cfg.RuntimeMetrics {
		opts = append(opts, metrics.WithRuntimeMetrics(cfg.MetricsPrefix))
	}
	return metrics.NewRegistry(opts...)
}

// newServer registers the application metrics with reg and wires the
// executor, rate limiter and websocket upgrader.
func newServer(cfg Config, reg *metrics.Registry) (*server, error) {
	m, err := newAppMetrics(reg)
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		executor: calc.NewExecutor(m.calcMetrics()),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return s, nil
}
