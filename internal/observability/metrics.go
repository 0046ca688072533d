package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal       prometheus.Counter
	RunFailures     prometheus.Counter
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Snapshot acquisition metrics.
	FetchDuration prometheus.Histogram
	SnapshotCache *prometheus.CounterVec // labels: result={hit,miss,stale,corrupt}

	// Output metrics.
	RecordsPublished prometheus.Counter
	ReportsWritten   prometheus.Counter

	// Gauges describing the most recent successful run.
	GridCells         prometheus.Gauge
	LatestMeanAnomaly prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "runs_total",
			Help:      "Total pipeline runs attempted.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "run_failures_total",
			Help:      "Total pipeline runs that ended in an error.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-compute-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate_etl",
			Name:      "snapshot_fetch_duration_seconds",
			Help:      "Duration of snapshot acquisition, including cache reads.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "snapshot_cache_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "records_published_total",
			Help:      "Total anomaly records written to the sink topic.",
		}),
		ReportsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_etl",
			Name:      "reports_written_total",
			Help:      "Total report bundles rendered to disk.",
		}),
		GridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "grid_cells",
			Help:      "Cells per timestep in the most recent grid.",
		}),
		LatestMeanAnomaly: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "climate_etl",
			Name:      "latest_mean_anomaly_degc",
			Help:      "Spatial mean anomaly of the newest timestep, degrees Celsius.",
		}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunFailures,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.FetchDuration,
		m.SnapshotCache,
		m.RecordsPublished,
		m.ReportsWritten,
		m.GridCells,
		m.LatestMeanAnomaly,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_etl", Name: "runs_total"}),
		RunFailures:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_etl", Name: "run_failures_total"}),
		RunDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "climate_etl", Name: "run_duration_seconds"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_etl", Name: "pipeline_running"}),
		LastSuccess:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_etl", Name: "last_success_timestamp_seconds"}),
		FetchDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "climate_etl", Name: "snapshot_fetch_duration_seconds"}),
		SnapshotCache:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "climate_etl", Name: "snapshot_cache_total"}, []string{"result"}),
		RecordsPublished:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_etl", Name: "records_published_total"}),
		ReportsWritten:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "climate_etl", Name: "reports_written_total"}),
		GridCells:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_etl", Name: "grid_cells"}),
		LatestMeanAnomaly: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "climate_etl", Name: "latest_mean_anomaly_degc"}),
	}
}
