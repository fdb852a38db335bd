package writer

import (
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

// Parquet serializes rows into the columnar binary container. The schema is
// inferred once from the first row and frozen: integral numerics map to
// INT64, non-integral numerics to DOUBLE, booleans to BOOLEAN, timestamps to
// millisecond-epoch TIMESTAMP, and everything else (including nested values,
// flattened to canonical JSON text) to a UTF-8 string column. A later row
// that disagrees with the frozen schema fails the job.
//
// Row groups are cut per batch so row-group memory stays bounded by one
// batch. Block compression (snappy) is always on; string columns use
// dictionary encoding, which pays off on low-cardinality data.
//
// The sink must be the scratch file the pipeline streams afterwards: the
// container's footer makes a single-pass network stream impractical.
type Parquet struct {
	targets []string
	kinds   []value.Kind // frozen column kinds, nil until first row
	pw      *parquet.GenericWriter[map[string]any]
	scratch []map[string]any
}

// NewParquet returns a columnar writer for the given ordered targets.
func NewParquet(targets []string) *Parquet {
	return &Parquet{targets: targets}
}

// WriteHeader is a no-op: the schema is unknown until the first row arrives.
func (p *Parquet) WriteHeader(io.Writer) error { return nil }

func (p *Parquet) WriteBatch(w io.Writer, rows []mapper.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if p.pw == nil {
		p.freeze(rows[0])
		p.open(w)
	}

	if cap(p.scratch) < len(rows) {
		p.scratch = make([]map[string]any, 0, len(rows))
	}
	p.scratch = p.scratch[:0]
	for _, rec := range rows {
		m := make(map[string]any, len(rec))
		for i, f := range rec {
			cell, err := p.coerce(i, f)
			if err != nil {
				return err
			}
			if cell != nil {
				m[f.Target] = cell
			}
		}
		p.scratch = append(p.scratch, m)
	}
	if _, err := p.pw.Write(p.scratch); err != nil {
		return fmt.Errorf("parquet write: %w", err)
	}
	// One row group per batch.
	if err := p.pw.Flush(); err != nil {
		return fmt.Errorf("parquet flush: %w", err)
	}
	return nil
}

func (p *Parquet) Finalize(w io.Writer) error {
	if p.pw == nil {
		// Empty dataset: no row to infer from. Emit a valid empty file with
		// every column as an optional string.
		p.kinds = make([]value.Kind, len(p.targets))
		for i := range p.kinds {
			p.kinds[i] = value.KindText
		}
		p.open(w)
	}
	if err := p.pw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}
	return nil
}

// freeze infers the column kinds from the first fetched row. A null in the
// first row cannot be told apart from "everything else", so it freezes to a
// string column.
func (p *Parquet) freeze(rec mapper.Record) {
	p.kinds = make([]value.Kind, len(rec))
	for i, f := range rec {
		switch f.Value.Kind() {
		case value.KindInteger:
			p.kinds[i] = value.KindInteger
		case value.KindDecimal:
			p.kinds[i] = value.KindDecimal
		case value.KindBoolean:
			p.kinds[i] = value.KindBoolean
		case value.KindTimestamp:
			p.kinds[i] = value.KindTimestamp
		default:
			p.kinds[i] = value.KindText
		}
	}
}

func (p *Parquet) open(w io.Writer) {
	group := parquet.Group{}
	for i, target := range p.targets {
		group[target] = columnNode(p.kinds[i])
	}
	schema := parquet.NewSchema("export", group)
	p.pw = parquet.NewGenericWriter[map[string]any](w, schema,
		parquet.Compression(&parquet.Snappy))
}

func columnNode(k value.Kind) parquet.Node {
	switch k {
	case value.KindInteger:
		return parquet.Optional(parquet.Int(64))
	case value.KindDecimal:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case value.KindBoolean:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case value.KindTimestamp:
		return parquet.Optional(parquet.Timestamp(parquet.Millisecond))
	default:
		return parquet.Optional(parquet.Encoded(parquet.String(), &parquet.RLEDictionary))
	}
}

// coerce converts one field to the physical type of its frozen column.
// Nulls are accepted by every column; anything else must agree with the
// inferred kind.
func (p *Parquet) coerce(i int, f mapper.Field) (any, error) {
	v := f.Value
	if v.IsNull() {
		return nil, nil
	}
	want := p.kinds[i]
	switch want {
	case value.KindInteger:
		if v.Kind() == value.KindInteger {
			return v.Int(), nil
		}
	case value.KindDecimal:
		switch v.Kind() {
		case value.KindDecimal:
			fv, err := strconv.ParseFloat(v.Str(), 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: parse decimal %q: %w", f.Target, v.Str(), err)
			}
			return fv, nil
		case value.KindInteger:
			return float64(v.Int()), nil
		}
	case value.KindBoolean:
		if v.Kind() == value.KindBoolean {
			return v.Bool(), nil
		}
	case value.KindTimestamp:
		if v.Kind() == value.KindTimestamp {
			return v.Time().UnixMilli(), nil
		}
	case value.KindText:
		// String columns absorb every kind via the flat text form.
		return v.FlatString(), nil
	}
	return nil, &SchemaMismatchError{Column: f.Target, Want: want, Got: v.Kind()}
}
