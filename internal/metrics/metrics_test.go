package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/rates/{from}/{to}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	for _, path := range []string{"/rates/EUR/GBP", "/rates/USD/JPY", "/health", "/wp-admin", "/.env"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/rates/{from}/{to}", http.MethodGet, "4xx")); got != 2 {
		t.Errorf("Expected 2 rate requests, got: %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/health", http.MethodGet, "2xx")); got != 1 {
		t.Errorf("Expected 1 health request, got: %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(UnmatchedRoute, http.MethodGet, "4xx")); got != 2 {
		t.Errorf("Expected 2 unmatched requests, got: %v", got)
	}
	if got := testutil.CollectAndCount(m.HTTPRequestsTotal); got != 3 {
		t.Errorf("Expected 3 request series, got: %d", got)
	}
}

func TestResult(t *testing.T) {
	if Result(nil) != ResultOK {
		t.Errorf("Expected %s for nil error", ResultOK)
	}
	if Result(errors.New("boom")) != ResultError {
		t.Errorf("Expected %s for error", ResultError)
	}
}
