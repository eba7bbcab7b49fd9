package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageRuns       *prometheus.CounterVec   // labels: stage, outcome={ok,failed,skipped}
	StageDuration   *prometheus.HistogramVec // labels: stage

	RecordsProcessed *prometheus.CounterVec // labels: stage
	RecordsSkipped   *prometheus.CounterVec // labels: stage, reason

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={found,empty,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration prometheus.Histogram

	// Hotspot aggregation metrics.
	HotspotCells  prometheus.Gauge
	HotspotPoints prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_etl",
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is executing stages, 0 otherwise.",
		}),
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "stage_runs_total",
			Help:      "Stage executions by stage name and outcome.",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traffic_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of a stage run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "records_processed_total",
			Help:      "Records successfully processed per stage.",
		}, []string{"stage"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "records_skipped_total",
			Help:      "Records skipped per stage and reason.",
		}, []string{"stage", "reason"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "geocode_requests_total",
			Help:      "Nominatim lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traffic_etl",
			Name:      "geocode_duration_seconds",
			Help:      "Nominatim request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		HotspotCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_etl",
			Name:      "hotspot_cells",
			Help:      "Populated hex cells produced by the last aggregation.",
		}),
		HotspotPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_etl",
			Name:      "hotspot_points",
			Help:      "Valid incident points consumed by the last aggregation.",
		}),
	}
}

// NewMetrics creates all pipeline metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageRuns,
		m.StageDuration,
		m.RecordsProcessed,
		m.RecordsSkipped,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeDuration,
		m.HotspotCells,
		m.HotspotPoints,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when multiple tests construct them.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
