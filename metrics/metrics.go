// Package metrics provides Prometheus metrics collection for the
// interactions API. Alongside the standard HTTP metrics it tracks the
// domain-level counters the safety team watches: checks run, alerts raised
// by kind and severity, override decisions, and reference reload health.
//
// All metrics are automatically registered with the Prometheus default
// registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	ChecksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prescription_checks_total",
			Help: "Total prescription safety checks run",
		},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_alerts_total",
			Help: "Alerts raised, by kind and severity",
		},
		[]string{"kind", "severity"},
	)

	OverridesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "override_decisions_total",
			Help: "Override decisions recorded, by decision",
		},
		[]string{"decision"},
	)

	ReferenceReloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reference_reload_duration_seconds",
			Help:    "Reference data reload latency",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	ReferenceReloadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reference_reload_failures_total",
			Help: "Reference data reloads that failed and kept the old snapshot",
		},
	)

	ReferenceEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reference_entries",
			Help: "Entries in the active reference snapshot, by dataset",
		},
		[]string{"dataset"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ChecksTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(OverridesTotal)
	prometheus.MustRegister(ReferenceReloadDuration)
	prometheus.MustRegister(ReferenceReloadFailures)
	prometheus.MustRegister(ReferenceEntries)
}
