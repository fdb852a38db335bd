// Package promexp implements a Prometheus scrape backend for the metrics
// package.
//
// It adapts the generic metrics.Backend interface to Prometheus by mapping
// the export labels (format, status) onto client_golang CounterVec and
// HistogramVec collectors, exposed on a /metrics handler. All
// Prometheus-specific dependencies live here so the rest of the project can
// swap metric systems without changes to the pipeline.
package promexp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exportd/internal/metrics"
)

// Backend is a Prometheus scrape-style metrics backend.
type Backend struct {
	reg *prometheus.Registry

	jobCounter   *prometheus.CounterVec   // export_jobs_total
	jobDuration  *prometheus.HistogramVec // export_duration_seconds
	rowCounter   *prometheus.CounterVec   // export_rows_total
	batchCounter *prometheus.CounterVec   // export_batches_total
	byteCounter  *prometheus.CounterVec   // export_bytes_total
}

// NewBackend constructs a Backend with its own registry.
func NewBackend() *Backend {
	reg := prometheus.NewRegistry()

	jobCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Total number of export executions, partitioned by format and status.",
	}, []string{"format", "status"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "export_duration_seconds",
		Help:    "Wall time of export executions.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"format", "status"})

	rowCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_rows_total",
		Help: "Rows streamed out, partitioned by format.",
	}, []string{"format"})

	batchCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_batches_total",
		Help: "Cursor batches fetched, partitioned by format.",
	}, []string{"format"})

	byteCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_bytes_total",
		Help: "Output bytes handed to client sinks, partitioned by format.",
	}, []string{"format"})

	reg.MustRegister(jobCounter, jobDuration, rowCounter, batchCounter, byteCounter)

	return &Backend{
		reg:          reg,
		jobCounter:   jobCounter,
		jobDuration:  jobDuration,
		rowCounter:   rowCounter,
		batchCounter: batchCounter,
		byteCounter:  byteCounter,
	}
}

// Handler returns the scrape endpoint for this backend's registry.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{})
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "export_jobs_total":
		b.jobCounter.With(prometheus.Labels{
			"format": labels["format"], "status": labels["status"],
		}).Add(delta)
	case "export_rows_total":
		b.rowCounter.With(prometheus.Labels{"format": labels["format"]}).Add(delta)
	case "export_batches_total":
		b.batchCounter.With(prometheus.Labels{"format": labels["format"]}).Add(delta)
	case "export_bytes_total":
		b.byteCounter.With(prometheus.Labels{"format": labels["format"]}).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, v float64, labels metrics.Labels) {
	if name == "export_duration_seconds" {
		b.jobDuration.With(prometheus.Labels{
			"format": labels["format"], "status": labels["status"],
		}).Observe(v)
	}
}

// Flush is a no-op for a scrape-based backend.
func (b *Backend) Flush() error { return nil }
