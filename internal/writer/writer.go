// Package writer contains the per-format serializers of the export pipeline.
//
// Every writer consumes mapped row batches in the order the row source yields
// them and never buffers more than the batch in hand. Writers are one-shot:
// they serialize a single row stream from its start, and a failure mid-stream
// invalidates the whole output.
package writer

import (
	"fmt"
	"io"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

// Writer is the serializer contract shared by all formats.
type Writer interface {
	// WriteHeader emits any stream prologue (CSV header line, array start
	// token, document prologue). Formats without an eager prologue may no-op.
	WriteHeader(w io.Writer) error

	// WriteBatch serializes one batch of mapped records, in order.
	WriteBatch(w io.Writer, rows []mapper.Record) error

	// Finalize emits the stream epilogue and flushes any internal buffering.
	Finalize(w io.Writer) error
}

// SchemaMismatchError reports a row whose shape disagrees with the schema
// inferred from the first row of a columnar export. It is fatal to the job.
type SchemaMismatchError struct {
	Column string
	Want   value.Kind
	Got    value.Kind
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("column %q: schema inferred %s from first row, later row has %s",
		e.Column, e.Want, e.Got)
}
