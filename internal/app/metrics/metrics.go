// Package metrics exposes Prometheus collectors for the wallet backend.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the dedicated registry for all wallet backend metrics.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wallet_backend",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Number of HTTP requests currently being served.",
	})

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_backend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_backend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	transactionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_backend",
			Subsystem: "ledger",
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions submitted for settlement.",
		},
		[]string{"currency"},
	)

	transactionsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_backend",
			Subsystem: "ledger",
			Name:      "transactions_settled_total",
			Help:      "Total number of transactions settled, by outcome.",
		},
		[]string{"status"},
	)

	settlementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_backend",
			Subsystem: "ledger",
			Name:      "settlement_duration_seconds",
			Help:      "Duration of transaction settlement operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transactionsSubmitted,
		transactionsSettled,
		settlementDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTransactionSubmitted records a newly submitted transaction.
func RecordTransactionSubmitted(currency string) {
	if currency == "" {
		currency = "unknown"
	}
	transactionsSubmitted.WithLabelValues(currency).Inc()
}

// RecordSettlement records the outcome and duration of a settlement decision.
func RecordSettlement(status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Microsecond
	}
	transactionsSettled.WithLabelValues(status).Inc()
	settlementDuration.WithLabelValues(status).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses RPC paths to a bounded label set.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "rpc" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/rpc"
	}
	return "/rpc/" + parts[1]
}
