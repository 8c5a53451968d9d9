package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestInFlightGaugeReturnsToZero(t *testing.T) {
	s := newTestServer(t, testConfig())
	router := s.routes()

	targets := []string{
		"/add?num1=5&num2=3",
		"/sub?num1=5",
		"/mul?num1=x&num2=2",
		"/div?num1=6&num2=0",
		"/nonexistent",
		"/metrics",
	}
	const n = 300
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doRequest(router, http.MethodGet, targets[i%len(targets)])
		}(i)
	}
	wg.Wait()

	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("in-flight gauge = %v after all requests completed, want 0", got)
	}
	perTarget := float64(n / len(targets))
	if got := requestCount(s, http.MethodGet, "/add", "200"); got != perTarget {
		t.Errorf("GET /add 200 = %v, want %v", got, perTarget)
	}
	if got := requestCount(s, http.MethodGet, "/nonexistent", "404"); got != perTarget {
		t.Errorf("GET /nonexistent 404 = %v, want %v", got, perTarget)
	}
	if got := s.metrics.calculationsTotal.WithLabelValues().Value(); got != perTarget {
		t.Errorf("calculations_total = %v, want %v", got, perTarget)
	}
}

func TestInFlightGaugeDuringRequest(t *testing.T) {
	s := newTestServer(t, testConfig())
	var during float64
	h := s.instrumentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = s.metrics.inFlight.Value()
	}))

	doRequest(h, http.MethodGet, "/probe")
	if during != 1 {
		t.Errorf("gauge inside handler = %v, want 1", during)
	}
	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("gauge after handler = %v, want 0", got)
	}
	// Status defaults to 200 when the handler writes nothing.
	if got := requestCount(s, http.MethodGet, "/probe", "200"); got != 1 {
		t.Errorf("GET /probe 200 = %v, want 1", got)
	}
}

func TestRequestCounterIncrementsByOne(t *testing.T) {
	s := newTestServer(t, testConfig())
	router := s.routes()

	for i := 1; i <= 3; i++ {
		doRequest(router, http.MethodGet, "/mul?num1=2&num2=2")
		if got := requestCount(s, http.MethodGet, "/mul", "200"); got != float64(i) {
			t.Fatalf("after %d requests counter = %v", i, got)
		}
		if got := s.metrics.requestDuration.WithLabelValues(http.MethodGet, "/mul", "200").Count(); got != uint64(i) {
			t.Fatalf("after %d requests histogram count = %d", i, got)
		}
	}
}

func TestInstrumentRecoversPanics(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.instrumentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))

	rr := doRequest(h, http.MethodGet, "/boom")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if rr.Body.String() != msgInternalError {
		t.Errorf("body = %q", rr.Body.String())
	}
	if got := requestCount(s, http.MethodGet, "/boom", "500"); got != 1 {
		t.Errorf("panic not recorded as 500: %v", got)
	}
	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}

func TestInstrumentKeepsWrittenStatusOnPanic(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.instrumentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("late handler bug")
	}))

	rr := doRequest(h, http.MethodGet, "/late")
	if rr.Code != http.StatusOK {
		t.Errorf("client status = %d, want 200", rr.Code)
	}
	if got := requestCount(s, http.MethodGet, "/late", "200"); got != 1 {
		t.Errorf("GET /late 200 = %v, want 1", got)
	}
	if got := requestCount(s, http.MethodGet, "/late", "500"); got != 0 {
		t.Errorf("GET /late 500 = %v, want 0", got)
	}
	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}

func TestInstrumentPropagatesAbortHandler(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.instrumentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic(http.ErrAbortHandler)
	}))

	func() {
		defer func() {
			if rec := recover(); rec != http.ErrAbortHandler {
				t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
			}
		}()
		doRequest(h, http.MethodGet, "/abort")
	}()

	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
	if got := requestCount(s, http.MethodGet, "/abort", "200"); got != 1 {
		t.Errorf("aborted request not recorded: %v", got)
	}
}

func TestInFlightGaugeReleasedOnClientDisconnect(t *testing.T) {
	s := newTestServer(t, testConfig())
	entered := make(chan struct{})
	h := s.instrumentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
	}))
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/slow", nil)
	errCh := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	<-entered
	if got := s.metrics.inFlight.Value(); got != 1 {
		t.Errorf("gauge while blocked = %v, want 1", got)
	}
	cancel()
	if err := <-errCh; err == nil {
		t.Errorf("expected client error after cancel")
	}
	waitFor(t, "in-flight gauge to drain", func() bool { return s.metrics.inFlight.Value() == 0 })
	waitFor(t, "disconnected request to be recorded", func() bool {
		return requestCount(s, http.MethodGet, "/slow", "200") == 1
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(t, testConfig())
	router := s.routes()

	rr := doRequest(router, http.MethodGet, "/add?num1=1&num2=1")
	rid := rr.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(rid); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", rid, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/add?num1=1&num2=1", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, req)
	if rr2.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("expected X-Request-ID=abc-123 got %q", rr2.Header().Get("X-Request-ID"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	s := newTestServer(t, cfg)
	router := s.routes()

	if rr := doRequest(router, http.MethodGet, "/add?num1=1&num2=1"); rr.Code != http.StatusOK {
		t.Fatalf("first req status: %d", rr.Code)
	}
	rr := doRequest(router, http.MethodGet, "/add?num1=1&num2=1")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second req expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After header")
	}
	if got := requestCount(s, http.MethodGet, "/add", "429"); got != 1 {
		t.Errorf("rate-limited request not recorded: %v", got)
	}
	if got := s.metrics.inFlight.Value(); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}

func TestRateLimiterDisabledByDefault(t *testing.T) {
	s := newTestServer(t, testConfig())
	if s.limiter != nil {
		t.Fatalf("limiter should be nil without RATE_LIMIT_RPS")
	}
	router := s.routes()
	for i := 0; i < 20; i++ {
		if rr := doRequest(router, http.MethodGet, "/add?num1=1&num2=1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i, rr.Code)
		}
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	cfg := testConfig()
	cfg.LogRequests = true
	cfg.LogHeaders = true
	s := newTestServer(t, cfg)

	var seen int
	h := s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		if rw, ok := w.(*responseWriter); ok {
			seen = rw.statusCode
		}
	}))
	rr := doRequest(h, http.MethodGet, "/tea")
	if rr.Code != http.StatusTeapot || seen != http.StatusTeapot {
		t.Errorf("status = %d (wrapper saw %d), want %d", rr.Code, seen, http.StatusTeapot)
	}
}

func TestResponseWriterFirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)
	rw.WriteHeader(http.StatusBadRequest)
	rw.WriteHeader(http.StatusInternalServerError)
	fmt.Fprint(rw, "x")
	if rw.statusCode != http.StatusBadRequest || rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d/%d, want 400", rw.statusCode, rr.Code)
	}
	rw.Flush()
	if !rr.Flushed {
		t.Errorf("Flush not forwarded")
	}
	if _, _, err := rw.Hijack(); err == nil {
		t.Errorf("Hijack on a recorder should fail")
	}
}
