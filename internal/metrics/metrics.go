package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// UsageUpdatesTotal counts processed usage updates by result
	UsageUpdatesTotal *prometheus.CounterVec
	// CrossingsTotal counts crossing decisions by dimension and outcome
	CrossingsTotal *prometheus.CounterVec
	// NotificationsSentTotal counts delivered quota notifications
	NotificationsSentTotal prometheus.Counter
	// NotificationFailuresTotal counts failed pipeline stages
	NotificationFailuresTotal *prometheus.CounterVec
	// StoreLatency tracks history store operation latency
	StoreLatency *prometheus.HistogramVec
	// HistoryEntries tracks the number of persisted threshold changes
	HistoryEntries prometheus.Gauge
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		UsageUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_updates_total",
				Help:      "Total number of processed usage updates",
			},
			[]string{"result"},
		),
		CrossingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crossings_total",
				Help:      "Total number of crossing decisions",
			},
			[]string{"dimension", "outcome"},
		),
		NotificationsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of delivered quota notifications",
			},
		),
		NotificationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		StoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_seconds",
				Help:      "History store operation latency in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		HistoryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_entries",
				Help:      "Number of persisted threshold changes",
			},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}

	registry.MustRegister(
		m.UsageUpdatesTotal,
		m.CrossingsTotal,
		m.NotificationsSentTotal,
		m.NotificationFailuresTotal,
		m.StoreLatency,
		m.HistoryEntries,
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUsageUpdate records a processed usage update
func (m *Metrics) RecordUsageUpdate(result string) {
	m.UsageUpdatesTotal.WithLabelValues(result).Inc()
}

// RecordCrossing records a crossing decision
func (m *Metrics) RecordCrossing(dimension, outcome string) {
	m.CrossingsTotal.WithLabelValues(dimension, outcome).Inc()
}

// RecordNotificationSent records a delivered notification
func (m *Metrics) RecordNotificationSent() {
	m.NotificationsSentTotal.Inc()
}

// RecordNotificationFailure records a failed pipeline stage
func (m *Metrics) RecordNotificationFailure(stage string) {
	m.NotificationFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordStoreLatency records the latency of a history store operation
func (m *Metrics) RecordStoreLatency(operation string, durationSeconds float64) {
	m.StoreLatency.WithLabelValues(operation).Observe(durationSeconds)
}

// SetHistoryEntries sets the persisted change count
func (m *Metrics) SetHistoryEntries(count int) {
	m.HistoryEntries.Set(float64(count))
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
