package writer

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

func openParquet(t *testing.T, b []byte) *parquet.File {
	t.Helper()
	f, err := parquet.OpenFile(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return f
}

func TestParquetSchemaInference(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tree, err := value.ParseTree([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	rows := []mapper.Record{
		rec(
			fld("id", value.Integer(1)),
			fld("amount", value.Decimal("1234.5000")),
			fld("ok", value.Boolean(true)),
			fld("seen_at", value.Timestamp(ts)),
			fld("attrs", value.Nested(tree)),
		),
		rec(
			fld("id", value.Integer(2)),
			fld("amount", value.Decimal("0.25")),
			fld("ok", value.Boolean(false)),
			fld("seen_at", value.Timestamp(ts.Add(time.Hour))),
			fld("attrs", value.Null()),
		),
	}
	targets := []string{"id", "amount", "ok", "seen_at", "attrs"}
	out := writeAll(t, NewParquet(targets), rows)

	f := openParquet(t, out)
	if f.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2", f.NumRows())
	}
	fields := f.Schema().Fields()
	if len(fields) != len(targets) {
		t.Fatalf("schema has %d fields, want %d", len(fields), len(targets))
	}
	kinds := map[string]parquet.Kind{}
	for _, fd := range fields {
		kinds[fd.Name()] = fd.Type().Kind()
	}
	if kinds["id"] != parquet.Int64 {
		t.Fatalf("id kind = %v, want Int64", kinds["id"])
	}
	if kinds["amount"] != parquet.Double {
		t.Fatalf("amount kind = %v, want Double", kinds["amount"])
	}
	if kinds["ok"] != parquet.Boolean {
		t.Fatalf("ok kind = %v, want Boolean", kinds["ok"])
	}
	if kinds["seen_at"] != parquet.Int64 {
		t.Fatalf("seen_at kind = %v, want Int64 (timestamp)", kinds["seen_at"])
	}
	if kinds["attrs"] != parquet.ByteArray {
		t.Fatalf("attrs kind = %v, want ByteArray", kinds["attrs"])
	}
}

func TestParquetRowGroupPerBatch(t *testing.T) {
	mk := func(n int) []mapper.Record {
		var rows []mapper.Record
		for i := 0; i < n; i++ {
			rows = append(rows, rec(fld("id", value.Integer(int64(i)))))
		}
		return rows
	}
	out := writeAll(t, NewParquet([]string{"id"}), mk(10), mk(5))
	f := openParquet(t, out)
	if got := len(f.RowGroups()); got != 2 {
		t.Fatalf("row groups = %d, want 2", got)
	}
	if f.NumRows() != 15 {
		t.Fatalf("NumRows = %d, want 15", f.NumRows())
	}
}

func TestParquetSchemaMismatchIsFatal(t *testing.T) {
	w := NewParquet([]string{"v"})
	var buf bytes.Buffer
	if err := w.WriteHeader(&buf); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	first := []mapper.Record{rec(fld("v", value.Integer(1)))}
	if err := w.WriteBatch(&buf, first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	bad := []mapper.Record{rec(fld("v", value.Text("not a number")))}
	err := w.WriteBatch(&buf, bad)
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
	if sm.Column != "v" || sm.Want != value.KindInteger || sm.Got != value.KindText {
		t.Fatalf("mismatch detail = %+v", sm)
	}
}

func TestParquetNullsAllowedAfterInference(t *testing.T) {
	rows1 := []mapper.Record{rec(fld("v", value.Integer(1)))}
	rows2 := []mapper.Record{rec(fld("v", value.Null()))}
	out := writeAll(t, NewParquet([]string{"v"}), rows1, rows2)
	if f := openParquet(t, out); f.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2", f.NumRows())
	}
}

func TestParquetEmptyDataset(t *testing.T) {
	out := writeAll(t, NewParquet([]string{"id", "name"}))
	f := openParquet(t, out)
	if f.NumRows() != 0 {
		t.Fatalf("NumRows = %d, want 0", f.NumRows())
	}
	if got := len(f.Schema().Fields()); got != 2 {
		t.Fatalf("schema fields = %d, want 2", got)
	}
}

func TestParquetFirstRowNullFreezesString(t *testing.T) {
	rows1 := []mapper.Record{rec(fld("v", value.Null()))}
	rows2 := []mapper.Record{rec(fld("v", value.Integer(9)))}
	// Integer coerces into the string column via its flat form; no error.
	out := writeAll(t, NewParquet([]string{"v"}), rows1, rows2)
	f := openParquet(t, out)
	if got := f.Schema().Fields()[0].Type().Kind(); got != parquet.ByteArray {
		t.Fatalf("kind = %v, want ByteArray", got)
	}
}
