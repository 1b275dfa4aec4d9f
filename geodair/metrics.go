package geodair

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "geodair"

// Metrics collects pipeline metrics.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	FilesReadTotal   prometheus.Counter
	FilesFailedTotal prometheus.Counter
	RowsMergedTotal  prometheus.Counter

	TablesWrittenTotal *prometheus.CounterVec
	TableRows          *prometheus.GaugeVec
	TablesLoadedTotal  *prometheus.CounterVec

	PollutantsExtractedTotal *prometheus.CounterVec
}

// NewMetrics registers pipeline metrics to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Total number of runs by stage and status",
			},
			[]string{"stage", "status"},
		),

		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of runs in seconds by stage",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),

		FilesReadTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "raw_files_read_total",
				Help:      "Total number of raw files read",
			},
		),

		FilesFailedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "raw_files_failed_total",
				Help:      "Total number of raw files skipped because they could not be read",
			},
		),

		RowsMergedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_merged_total",
				Help:      "Total number of raw rows merged",
			},
		),

		TablesWrittenTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tables_written_total",
				Help:      "Total number of star schema tables written",
			},
			[]string{"table"},
		),

		TableRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "table_rows",
				Help:      "Number of rows of the last written star schema table",
			},
			[]string{"table"},
		),

		TablesLoadedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tables_loaded_total",
				Help:      "Total number of table loads by table and status",
			},
			[]string{"table", "status"},
		),

		PollutantsExtractedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "pollutants_extracted_total",
				Help:      "Total number of pollutant extractions by pollutant and status",
			},
			[]string{"pollutant", "status"},
		),
	}
}

// ObserveRun records the outcome and duration of a run.
func (m *Metrics) ObserveRun(r *Report, d time.Duration) {
	m.RunsTotal.WithLabelValues(string(r.Stage), r.Status.String()).Inc()
	m.RunDuration.WithLabelValues(string(r.Stage)).Observe(d.Seconds())
}
