package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "surveyetl"

// RunMetrics holds the gauges describing the last run. They are written as a
// node_exporter textfile since the process exits after each run.
type RunMetrics struct {
	registry *prometheus.Registry

	rows           *prometheus.GaugeVec
	columns        *prometheus.GaugeVec
	duplicates     prometheus.Gauge
	droppedColumns prometheus.Gauge
	imputed        *prometheus.GaugeVec
	renamed        prometheus.Gauge
	unmatched      *prometheus.GaugeVec
	sinkRows       prometheus.Gauge
	errors         *prometheus.CounterVec
	duration       prometheus.Gauge
	success        prometheus.Gauge
	lastRun        prometheus.Gauge
}

// NewRunMetrics creates the run gauges on a private registry
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rows",
			Help:      "Rows in the table before and after cleaning.",
		}, []string{"stage"}),
		columns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "columns",
			Help:      "Columns in the table before and after cleaning.",
		}, []string{"stage"}),
		duplicates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "duplicate_rows_removed",
			Help:      "Rows removed as duplicates.",
		}),
		droppedColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "columns_dropped",
			Help:      "Columns dropped for exceeding the missing threshold.",
		}),
		imputed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "values_imputed",
			Help:      "Missing values filled, by column kind.",
		}, []string{"kind"}),
		renamed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "columns_renamed",
			Help:      "Columns renamed by the rename table.",
		}),
		unmatched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "bucket_unmatched_rows",
			Help:      "Rows whose source value matched no bucket rule.",
		}, []string{"bucket"}),
		sinkRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sink_rows_written",
			Help:      "Rows written to the SQL sink.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors and warnings recorded during the run, by category.",
		}, []string{"category"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_success",
			Help:      "1 if the run completed without errors.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}

	m.registry.MustRegister(
		m.rows, m.columns, m.duplicates, m.droppedColumns, m.imputed, m.renamed,
		m.unmatched, m.sinkRows, m.errors, m.duration, m.success, m.lastRun,
	)
	return m
}

// Registry exposes the registry the gauges live on
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordError counts one error of the given category
func (m *RunMetrics) RecordError(category ErrorCategory) {
	m.errors.WithLabelValues(category.String()).Inc()
}

// Record sets every gauge from a finished run
func (m *RunMetrics) Record(result *RunResult) {
	m.rows.WithLabelValues("input").Set(float64(result.RowsRead))
	m.rows.WithLabelValues("output").Set(float64(result.RowsWritten))
	m.columns.WithLabelValues("input").Set(float64(result.ColumnsRead))
	m.columns.WithLabelValues("output").Set(float64(result.ColumnsWritten))
	m.sinkRows.Set(float64(result.SinkRows))
	m.duration.Set(result.Duration.Seconds())
	if !result.EndTime.IsZero() {
		m.lastRun.Set(float64(result.EndTime.Unix()))
	}
	if result.Success {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}

	s := result.Summary
	if s == nil {
		return
	}
	m.duplicates.Set(float64(s.DuplicatesRemoved + s.FinalDuplicatesRemoved))
	m.droppedColumns.Set(float64(len(s.DroppedColumns)))
	m.imputed.WithLabelValues("text").Set(float64(s.TextImputed))
	m.imputed.WithLabelValues("numeric").Set(float64(s.NumericImputed))
	m.renamed.Set(float64(len(s.Renamed)))
	for _, b := range s.Buckets {
		if b.Skipped {
			continue
		}
		total := 0
		for _, n := range b.Unmatched {
			total += n
		}
		m.unmatched.WithLabelValues(b.Name).Set(float64(total))
	}
}

// WriteTextfile writes the gathered metrics in the text exposition format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
