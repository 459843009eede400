package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fetch-process-analyze pipeline and the dashboard.
type Metrics struct {
	// Fetch metrics, labelled by source ("noaa", "eia").
	FetchRequests *prometheus.CounterVec // labels: source, outcome={success,error}
	FetchRetries  *prometheus.CounterVec // labels: source
	FetchPages    *prometheus.CounterVec // labels: source
	RowsFetched   *prometheus.CounterVec // labels: source
	CitiesFailed  *prometheus.CounterVec // labels: source

	// Processing metrics.
	RowsMerged    prometheus.Counter
	QualityFlags  *prometheus.CounterVec // labels: check
	StageDuration *prometheus.HistogramVec
	RunDuration   prometheus.Histogram

	PipelineRunning prometheus.Gauge

	// Dashboard metrics.
	DashboardRequests *prometheus.CounterVec // labels: route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchPages,
		m.RowsFetched,
		m.CitiesFailed,
		m.RowsMerged,
		m.QualityFlags,
		m.StageDuration,
		m.RunDuration,
		m.PipelineRunning,
		m.DashboardRequests,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "fetch_requests_total",
			Help:      "API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "fetch_retries_total",
			Help:      "Retried API requests by source.",
		}, []string{"source"}),
		FetchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "fetch_pages_total",
			Help:      "API result pages fetched by source.",
		}, []string{"source"}),
		RowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "rows_fetched_total",
			Help:      "Raw rows fetched by source.",
		}, []string{"source"}),
		CitiesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "cities_failed_total",
			Help:      "Cities skipped after retry exhaustion, by source.",
		}, []string{"source"}),
		RowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "rows_merged_total",
			Help:      "Rows written to the merged table.",
		}),
		QualityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "quality_flags_total",
			Help:      "Data-quality findings by check.",
		}, []string{"check"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_energy",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_energy",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_energy",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		DashboardRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_energy",
			Name:      "dashboard_requests_total",
			Help:      "Dashboard HTTP requests by route.",
		}, []string{"route"}),
	}
}
