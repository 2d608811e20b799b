/*
metrics.go - Prometheus instrumentation for the HTTP layer

PURPOSE:
  Defines request counters and latency histograms and the middleware
  that records them. The /metrics endpoint itself is mounted in
  server.go via promhttp.

LABELS:
  method, path (route pattern, not the raw URL), status. Route patterns
  keep cardinality bounded when ids appear in paths.

SEE ALSO:
  - server.go: Middleware and /metrics mounting
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rent_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	recalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_recalculations_total",
		Help: "Recalculation runs by outcome.",
	}, []string{"outcome"})
)

// ObserveRecalculation records one recalculation run.
func ObserveRecalculation(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	recalculationsTotal.WithLabelValues(outcome).Inc()
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Route pattern is only known after chi has matched.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.statusCode),
		).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
