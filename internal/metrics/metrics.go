// Package metrics provides Prometheus instrumentation for the trade engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DealsCommitted counts committed trade agreements.
	DealsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trade_deals_committed_total",
		Help: "Total number of deals committed",
	})

	// DealsExecuted counts executed trades.
	DealsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trade_deals_executed_total",
		Help: "Total number of deals executed",
	})

	// VerifyFailures counts failed verifications, partitioned by error code.
	VerifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_verify_failures_total",
		Help: "Verifications that failed, by error code",
	}, []string{"code"})

	// RuleRejections counts validation failures, partitioned by rule error code.
	RuleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_rule_rejections_total",
		Help: "Deals rejected at validation, by error code",
	}, []string{"code"})

	// ActiveAgreements tracks the number of ACTIVE committed deals.
	ActiveAgreements = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trade_active_agreements",
		Help: "Number of currently active trade agreements",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trade_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
