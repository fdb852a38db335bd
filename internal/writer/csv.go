package writer

import (
	"encoding/csv"
	"io"

	"exportd/internal/mapper"
)

// CSV serializes rows as delimiter-separated text. Quoting follows
// encoding/csv: a field is quote-wrapped when it contains the delimiter, a
// quote, or a line break, and embedded quotes are doubled. Null values render
// as empty fields; nested values render as a single canonical JSON blob.
type CSV struct {
	targets []string
	fields  []string // scratch, reused across rows
}

// NewCSV returns a CSV writer emitting the given ordered header.
func NewCSV(targets []string) *CSV {
	return &CSV{targets: targets, fields: make([]string, len(targets))}
}

func (c *CSV) WriteHeader(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(c.targets); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (c *CSV) WriteBatch(w io.Writer, rows []mapper.Record) error {
	cw := csv.NewWriter(w)
	for _, rec := range rows {
		for i, f := range rec {
			c.fields[i] = f.Value.FlatString()
		}
		if err := cw.Write(c.fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (c *CSV) Finalize(io.Writer) error { return nil }
