// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the export pipeline.
//
// It exposes a narrow interface (Backend) focused on counters and timing
// data, with a global, pluggable backend that defaults to a no-op
// implementation, so metrics are always safe to call even when no real
// backend is configured. Concrete metric systems stay isolated in
// subpackages (see promexp).
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordExport measures one export execution: latency plus a
// success/failure counter, partitioned by format.
func RecordExport(format string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"format": format,
		"status": status,
	}
	backend.IncCounter("export_jobs_total", 1, lbls)
	backend.ObserveHistogram("export_duration_seconds", d.Seconds(), lbls)
}

// RecordRows counts rows streamed out for the given format.
func RecordRows(format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_rows_total", float64(delta), Labels{
		"format": format,
	})
}

// RecordBatches counts cursor batches fetched for the given format.
func RecordBatches(format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_batches_total", float64(delta), Labels{
		"format": format,
	})
}

// RecordBytes counts output bytes handed to the client sink.
func RecordBytes(format string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("export_bytes_total", float64(delta), Labels{
		"format": format,
	})
}
