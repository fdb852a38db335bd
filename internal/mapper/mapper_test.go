package mapper

import (
	"testing"

	"exportd/internal/value"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cols    []ColumnMapping
		wantErr bool
	}{
		{"ok", []ColumnMapping{{"id", "id"}, {"name", "full_name"}}, false},
		{"empty list", nil, true},
		{"empty source", []ColumnMapping{{"", "id"}}, true},
		{"empty target", []ColumnMapping{{"id", ""}}, true},
		{"duplicate target", []ColumnMapping{{"a", "x"}, {"b", "x"}}, true},
		{"target starts with digit", []ColumnMapping{{"id", "1id"}}, true},
		{"target with space", []ColumnMapping{{"id", "my col"}}, true},
		{"target with dot and dash", []ColumnMapping{{"id", "a.b-c"}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate(Normalize(c.cols))
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate(%v) error = %v, wantErr %v", c.cols, err, c.wantErr)
			}
		})
	}
}

func TestNormalizeTrims(t *testing.T) {
	cols := Normalize([]ColumnMapping{{"  id ", " name\t"}})
	if cols[0].Source != "id" || cols[0].Target != "name" {
		t.Fatalf("Normalize = %+v", cols[0])
	}
}

func TestProjectionQuotesIdentifiers(t *testing.T) {
	got := Projection([]ColumnMapping{{"id", "id"}, {`weird"col`, "w"}})
	want := `"id", "weird""col"`
	if got != want {
		t.Fatalf("Projection = %s, want %s", got, want)
	}
}

func TestApplyMissingSourceIsNull(t *testing.T) {
	row := map[string]value.Value{"id": value.Integer(1)}
	rec := Apply(row, []ColumnMapping{{"id", "id"}, {"gone", "gone"}})
	if len(rec) != 2 {
		t.Fatalf("len(rec) = %d", len(rec))
	}
	if rec[0].Target != "id" || rec[0].Value.Int() != 1 {
		t.Fatalf("rec[0] = %+v", rec[0])
	}
	if !rec[1].Value.IsNull() {
		t.Fatalf("missing source should map to null, got %v", rec[1].Value.Kind())
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	row := map[string]value.Value{
		"a": value.Text("A"),
		"b": value.Text("B"),
		"c": value.Text("C"),
	}
	cols := []ColumnMapping{{"c", "third"}, {"a", "first"}, {"b", "second"}}
	rec := Apply(row, cols)
	gotOrder := []string{rec[0].Target, rec[1].Target, rec[2].Target}
	wantOrder := []string{"third", "first", "second"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}
