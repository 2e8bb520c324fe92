package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and query paths.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec   // labels: provider, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: provider

	ObservationsMerged *prometheus.CounterVec // labels: result={inserted,duplicate}
	TicksSkipped       *prometheus.CounterVec // labels: job={telemetry,forecast}
	LastSuccess        *prometheus.GaugeVec   // labels: job={telemetry,forecast}; unix seconds
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.ObservationsMerged,
		m.TicksSkipped,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "provider_fetch_total",
			Help:      "Provider fetch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_station",
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),
		ObservationsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "observations_merged_total",
			Help:      "Observations merged into the store by result.",
		}, []string{"result"}),
		TicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Scheduler ticks skipped because the previous cycle was still running.",
		}, []string{"job"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weather_station",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful fetch cycle per job.",
		}, []string{"job"}),
	}
}
