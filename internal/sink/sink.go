// Package sink provides the terminal-side plumbing of the export pipeline:
// the optional gzip stage and byte accounting for downloads and benchmarks.
package sink

import (
	"io"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
)

// NewGzip inserts a pass-through gzip stage in front of w. Every byte the
// writer emits reaches w compressed, in order; the caller must Close the
// returned writer to flush the trailing gzip frame.
//
// The stage is only legal for textual formats; the parquet container already
// carries internal block compression and the combination is rejected at the
// validation boundary before a pipeline exists.
func NewGzip(w io.Writer) *gzip.Writer {
	return gzip.NewWriter(w)
}

// CountingWriter counts bytes on their way to the underlying writer. The
// count is read concurrently by benchmark reporting, hence atomic.
type CountingWriter struct {
	w io.Writer
	n atomic.Int64
}

func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes written so far.
func (c *CountingWriter) Count() int64 { return c.n.Load() }
