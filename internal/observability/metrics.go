package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	submissionsTotal      *prometheus.CounterVec
	resolutionsTotal      *prometheus.CounterVec
	dispatchLatency       *prometheus.HistogramVec
	activeSessions        prometheus.Gauge
	dispatchBucketsSecond = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
)

// RegisterMetrics initialises the Prometheus collectors used by the workbench.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "http_requests_total",
			Help:      "Total number of workbench HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testgen",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for workbench HTTP requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "submissions_total",
			Help:      "Submit requests by outcome (started, no_selection, in_flight).",
		}, []string{"outcome"})

		resolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testgen",
			Name:      "resolutions_total",
			Help:      "Resolved submissions by resulting phase.",
		}, []string{"phase"})

		dispatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testgen",
			Subsystem: "extraction",
			Name:      "upload_duration_seconds",
			Help:      "Duration of document uploads to the extraction service.",
			Buckets:   dispatchBucketsSecond,
		}, []string{"outcome"})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "testgen",
			Name:      "active_sessions",
			Help:      "Workbench sessions currently held in memory.",
		})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, submissionsTotal, resolutionsTotal, dispatchLatency, activeSessions)
	})
}

// HTTPRequests exposes the counter for workbench requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for workbench requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Submissions counts submit calls by outcome.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// Resolutions counts resolved dispatches by phase.
func Resolutions() *prometheus.CounterVec {
	RegisterMetrics()
	return resolutionsTotal
}

// DispatchLatency exposes the upload duration histogram.
func DispatchLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return dispatchLatency
}

// ActiveSessions tracks sessions held by the registry.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}
