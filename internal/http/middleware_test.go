package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TestCorrelationIDMiddleware_GeneratesID verifies a correlation ID is
// generated when the client does not send one, and echoed on the response.
func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Context().Value("correlation_id"); v != nil {
			seen = v.(string)
		}
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))

	if seen == "" {
		t.Fatal("no correlation ID in request context")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seen {
		t.Errorf("response header = %q, context value = %q", got, seen)
	}
}

// TestCorrelationIDMiddleware_PropagatesClientID verifies a client-supplied
// correlation ID is kept.
func TestCorrelationIDMiddleware_PropagatesClientID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/api/cameras", nil)
	req.Header.Set("X-Correlation-ID", "client-id-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "client-id-123" {
		t.Errorf("response header = %q, want client-id-123", got)
	}
}

// TestRateLimitMiddleware_Denies429 verifies requests past the burst get 429
// with the standard error envelope.
func TestRateLimitMiddleware_Denies429(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(limiter)(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

// TestRateLimitMiddleware_NilLimiterPassesThrough verifies the middleware is
// a no-op when rate limiting is disabled.
func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(nil)(next)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

// TestMetricsMiddleware_TracksInFlight verifies the middleware counts
// requests while they run and releases the count afterwards.
func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})
	handler := MetricsMiddleware(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))

	if during != 1 {
		t.Errorf("in-flight during request = %d, want 1", during)
	}
	if after := InFlightCount(); after != 0 {
		t.Errorf("in-flight after request = %d, want 0", after)
	}
}

// TestGetRoute_NormalizesPaths verifies metric route labels stay low
// cardinality.
func TestGetRoute_NormalizesPaths(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/cameras", "/api/cameras"},
		{"/favicon.ico", "other"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestMiddlewareChain verifies the middlewares compose on a mux router.
func TestMiddlewareChain(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/cameras", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation ID not set through the chain")
	}
}
