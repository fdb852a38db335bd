// Package job holds the export job model and the coordinator that binds a
// (format, columns, compression) request to a one-shot pipeline execution.
package job

import (
	"errors"
	"fmt"
	"time"

	"exportd/internal/mapper"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXML     Format = "xml"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a client-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON, FormatXML, FormatParquet:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// ContentType returns the download content type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatParquet:
		return "application/octet-stream"
	}
	return "application/octet-stream"
}

// Ext returns the filename extension for the format.
func (f Format) Ext() string {
	if f == FormatParquet {
		return "parquet"
	}
	return string(f)
}

// FileBased reports whether the format must be written to a scratch file and
// streamed afterwards instead of being emitted directly to the sink.
func (f Format) FileBased() bool { return f == FormatParquet }

// Compression selects the optional pass-through compression stage.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// ParseCompression validates a client-supplied compression string. Absent
// (empty) means none.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", string(CompressionNone):
		return CompressionNone, nil
	case string(CompressionGzip):
		return CompressionGzip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCompression, s)
}

// Status is the job state machine: pending → processing → completed|failed.
// No transition skips processing and none leaves a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job describes one export request and its lifecycle. Jobs are created by
// the Coordinator, mutated only by it, and live for the process lifetime.
type Job struct {
	ID          string                 `json:"id"`
	Format      Format                 `json:"format"`
	Columns     []mapper.ColumnMapping `json:"columns"`
	Compression Compression            `json:"compression"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Filename returns the disposition hint for a download of this job.
func (j Job) Filename() string {
	name := "export-" + j.ID + "." + j.Format.Ext()
	if j.Compression == CompressionGzip {
		name += ".gz"
	}
	return name
}

// Validation and lookup errors. Validation errors are rejected before any
// job exists; they never reach the pipeline.
var (
	ErrInvalidFormat          = errors.New("invalid export format")
	ErrInvalidColumns         = errors.New("invalid column mappings")
	ErrInvalidCompression     = errors.New("invalid compression mode")
	ErrUnsupportedCompression = errors.New("gzip compression is not supported for parquet")
	ErrNotFound               = errors.New("job not found")
	ErrNotPending             = errors.New("job has already been executed")
)
