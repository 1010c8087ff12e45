package metrics

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"net/http"
	"strconv"
	"time"
)

const (
	ResultOK     = "ok"
	ResultError  = "error"
	ResultNoRate = "no_rate"

	TriggerManual  = "manual"
	TriggerNotify  = "notify"
	TriggerStartup = "startup"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateLookupsTotal    *prometheus.CounterVec
	RateRefreshesTotal  *prometheus.CounterVec
	DocumentsSavedTotal *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_lookups_total",
				Help: "Total number of rate lookups by rate type and result",
			},
			[]string{"type", "result"},
		),

		RateRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_refreshes_total",
				Help: "Total number of rate reloads by trigger and result",
			},
			[]string{"trigger", "result"},
		),

		DocumentsSavedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_documents_saved_total",
				Help: "Total number of rates documents written to the cache",
			},
			[]string{"result"},
		),
	}
}

func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// UnmatchedRoute labels requests that matched no chi route.
const UnmatchedRoute = "unmatched"

// Middleware records request count and duration, labelled by the chi route
// pattern so path parameters do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := UnmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if path == "/metrics" {
			return
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(status/100)+"xx").Inc()
	})
}
