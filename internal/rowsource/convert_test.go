package rowsource

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

func numeric(digits string, exp int32) pgtype.Numeric {
	i, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		panic("bad digits " + digits)
	}
	return pgtype.Numeric{Int: i, Exp: exp, Valid: true}
}

func TestNumericText(t *testing.T) {
	cases := []struct {
		name string
		n    pgtype.Numeric
		want string
	}{
		{"keeps trailing zeros", numeric("12345000", -4), "1234.5000"},
		{"integer", numeric("42", 0), "42"},
		{"positive exponent", numeric("42", 3), "42000"},
		{"sub-one", numeric("5000", -4), "0.5000"},
		{"tiny", numeric("7", -6), "0.000007"},
		{"negative", numeric("-12345", -2), "-123.45"},
		{"negative sub-one", numeric("-5", -3), "-0.005"},
		{"zero int", pgtype.Numeric{Valid: true}, "0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := numericText(c.n)
			if err != nil {
				t.Fatalf("numericText: %v", err)
			}
			if got != c.want {
				t.Fatalf("numericText = %q, want %q", got, c.want)
			}
		})
	}
}

func TestNumericTextRejectsNaN(t *testing.T) {
	if _, err := numericText(pgtype.Numeric{NaN: true, Valid: true}); err == nil {
		t.Fatal("expected error for NaN")
	}
}

func TestFromNative(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		kind value.Kind
		flat string
	}{
		{"nil", nil, value.KindNull, ""},
		{"string", "hi", value.KindText, "hi"},
		{"int64", int64(7), value.KindInteger, "7"},
		{"int32", int32(7), value.KindInteger, "7"},
		{"int16", int16(7), value.KindInteger, "7"},
		{"bool", true, value.KindBoolean, "true"},
		{"time", ts, value.KindTimestamp, "2024-01-02T03:04:05.000Z"},
		{"float64", 0.25, value.KindDecimal, "0.25"},
		{"bytes", []byte("raw"), value.KindText, "raw"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := fromNative(c.in)
			if err != nil {
				t.Fatalf("fromNative: %v", err)
			}
			if got.Kind() != c.kind {
				t.Fatalf("kind = %v, want %v", got.Kind(), c.kind)
			}
			if got.FlatString() != c.flat {
				t.Fatalf("flat = %q, want %q", got.FlatString(), c.flat)
			}
		})
	}
}

func TestToValueJSONKeepsNumbers(t *testing.T) {
	raw := []byte(`{"price": 19.9900}`)
	v, err := toValue(&raw)
	if err != nil {
		t.Fatalf("toValue: %v", err)
	}
	if v.Kind() != value.KindNested {
		t.Fatalf("kind = %v", v.Kind())
	}
	if got := v.FlatString(); got != `{"price":19.9900}` {
		t.Fatalf("canonical = %s", got)
	}
}

func TestUUIDText(t *testing.T) {
	var b [16]byte
	for i := range b {
		b[i] = byte(i)
	}
	if got := uuidText(b); got != "00010203-0405-0607-0809-0a0b0c0d0e0f" {
		t.Fatalf("uuidText = %s", got)
	}
}

func TestBuildQuery(t *testing.T) {
	cols := []mapper.ColumnMapping{{Source: "id", Target: "id"}, {Source: "name", Target: "name"}}
	got := BuildQuery("public.orders", cols, "id")
	want := `SELECT "id", "name" FROM "public"."orders" ORDER BY "id"`
	if got != want {
		t.Fatalf("BuildQuery = %s, want %s", got, want)
	}
}
