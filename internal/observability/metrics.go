package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis pipelines.
type Metrics struct {
	Units              *prometheus.CounterVec   // labels: pipeline, outcome={succeeded,skipped,failed}
	UnitDuration       *prometheus.HistogramVec // labels: pipeline
	ValidPixelFraction *prometheus.HistogramVec // labels: pipeline
	Exports            *prometheus.CounterVec   // labels: outcome={success,error}
	Retries            *prometheus.CounterVec   // labels: call={fetch,export,report}
	PipelineRunning    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewUnregisteredMetrics()
	prometheus.MustRegister(
		m.Units,
		m.UnitDuration,
		m.ValidPixelFraction,
		m.Exports,
		m.Retries,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

// NewUnregisteredMetrics creates Metrics that no registry collects.
func NewUnregisteredMetrics() *Metrics {
	return &Metrics{
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_pipeline",
			Name:      "units_total",
			Help:      "Units of work by pipeline and outcome.",
		}, []string{"pipeline", "outcome"}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lst_pipeline",
			Name:      "unit_duration_seconds",
			Help:      "Duration of one unit of work, including collaborator calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"pipeline"}),
		ValidPixelFraction: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lst_pipeline",
			Name:      "valid_pixel_fraction",
			Help:      "Fraction of grid pixels valid in a unit's output raster.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"pipeline"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_pipeline",
			Name:      "exports_total",
			Help:      "Raster exports by outcome.",
		}, []string{"outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lst_pipeline",
			Name:      "collaborator_retries_total",
			Help:      "Retried collaborator calls.",
		}, []string{"call"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lst_pipeline",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}
