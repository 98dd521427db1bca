// Package observability provides Prometheus metrics for the time tag writer.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WriterMetrics records the progress of writer runs. A nil *WriterMetrics is
// valid and records nothing.
type WriterMetrics struct {
	rowsWritten      prometheus.Counter
	rowGroupsWritten prometheus.Counter
	filesClosed      prometheus.Counter
	rotations        prometheus.Counter
	failures         *prometheus.CounterVec
	flushDuration    prometheus.Histogram
	bufferedRows     prometheus.Gauge
}

// NewWriterMetrics creates the writer metrics and registers them with reg.
func NewWriterMetrics(reg prometheus.Registerer) *WriterMetrics {
	m := &WriterMetrics{
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pqgen",
			Name:      "rows_written_total",
			Help:      "Total number of rows flushed into row groups",
		}),
		rowGroupsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pqgen",
			Name:      "row_groups_written_total",
			Help:      "Total number of row groups appended to output files",
		}),
		filesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pqgen",
			Name:      "files_closed_total",
			Help:      "Total number of output files finalized",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pqgen",
			Name:      "rotations_total",
			Help:      "Total number of file rotations",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pqgen",
			Name:      "write_failures_total",
			Help:      "Total number of fatal writer failures by error category",
		}, []string{"category"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pqgen",
			Name:      "flush_duration_seconds",
			Help:      "Time spent appending one row group",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		bufferedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pqgen",
			Name:      "buffered_rows",
			Help:      "Rows held in the row buffer at the last sample",
		}),
	}

	reg.MustRegister(
		m.rowsWritten,
		m.rowGroupsWritten,
		m.filesClosed,
		m.rotations,
		m.failures,
		m.flushDuration,
		m.bufferedRows,
	)
	return m
}

// RecordFlush records one appended row group.
func (m *WriterMetrics) RecordFlush(rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.rowsWritten.Add(float64(rows))
	m.rowGroupsWritten.Inc()
	m.flushDuration.Observe(d.Seconds())
	m.bufferedRows.Set(0)
}

// SetBuffered records the current row buffer occupancy.
func (m *WriterMetrics) SetBuffered(rows int) {
	if m == nil {
		return
	}
	m.bufferedRows.Set(float64(rows))
}

// RecordClose records a finalized output file.
func (m *WriterMetrics) RecordClose() {
	if m == nil {
		return
	}
	m.filesClosed.Inc()
}

// RecordRotation records a file rotation.
func (m *WriterMetrics) RecordRotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// RecordFailure records a fatal failure of the given error category.
func (m *WriterMetrics) RecordFailure(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "UNKNOWN"
	}
	m.failures.WithLabelValues(category).Inc()
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
