// Package metrics exposes Prometheus collectors for the console.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canny_console"

// Metrics holds the console's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	storeCalls    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec

	verifyOutcomes *prometheus.CounterVec
	verifyAttempts *prometheus.HistogramVec

	indexDrift *prometheus.GaugeVec
}

// New creates and registers the console collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),

		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "calls_total",
			Help:      "Key-value store calls by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Duration of key-value store calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"backend", "op"}),

		verifyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writeverify",
			Name:      "outcomes_total",
			Help:      "Write-verify results by record kind and outcome.",
		}, []string{"kind", "outcome"}),
		verifyAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writeverify",
			Name:      "read_attempts",
			Help:      "Read-back attempts used per write-verify call.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		}, []string{"kind"}),

		indexDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "drift_ids",
			Help:      "IDs out of sync between index sets and stored keys, from the last audit.",
		}, []string{"kind", "direction"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.storeCalls,
		m.storeDuration,
		m.verifyOutcomes,
		m.verifyAttempts,
		m.indexDrift,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// ObserveStoreCall records one store call.
func (m *Metrics) ObserveStoreCall(backend, op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeCalls.WithLabelValues(backend, op, result).Inc()
	m.storeDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordVerification records a write-verify result.
// outcome is "success" or the failure kind.
func (m *Metrics) RecordVerification(kind, outcome string, attempts int) {
	m.verifyOutcomes.WithLabelValues(kind, outcome).Inc()
	m.verifyAttempts.WithLabelValues(kind).Observe(float64(attempts))
}

// SetIndexDrift publishes the result of an index audit.
func (m *Metrics) SetIndexDrift(kind string, indexedMissing, unindexed int) {
	m.indexDrift.WithLabelValues(kind, "indexed_missing").Set(float64(indexedMissing))
	m.indexDrift.WithLabelValues(kind, "unindexed").Set(float64(unindexed))
}

// StatusLabel formats an HTTP status for labels.
func StatusLabel(status int) string {
	return strconv.Itoa(status)
}
