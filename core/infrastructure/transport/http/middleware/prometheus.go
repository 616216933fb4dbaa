package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dataask/dataask/core/observability"
)

// HTTPMetrics holds the prometheus collectors for the API surface. Route
// labels use the chi pattern so workspace and query ids never become labels.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	respSize *prometheus.HistogramVec
}

// NewHTTPMetrics registers the collectors on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataask_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "dataask_http_request_duration_seconds",
			Help: "HTTP request latency.",
			// ad-hoc queries and run-now can take minutes
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 900},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dataask_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataask_http_response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}, []string{"route"}),
	}
	reg.MustRegister(m.requests, m.duration, m.inFlight, m.respSize)
	return m
}

var defaultHTTPMetrics = NewHTTPMetrics(prometheus.DefaultRegisterer)

// Metrics records request metrics on the default registry.
func Metrics(next http.Handler) http.Handler {
	return defaultHTTPMetrics.Handler(next)
}

func (m *HTTPMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start).Seconds()

		route := routePattern(r)
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(elapsed)
		if n := ww.BytesWritten(); n > 0 {
			m.respSize.WithLabelValues(route).Observe(float64(n))
		}

		observability.RecordHTTPRequest(r.Context(), r.Method, route, ww.Status(), elapsed*1000)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
