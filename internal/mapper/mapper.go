// Package mapper translates a job's source-to-target column list into SQL
// projections and ordered output fields. Mapping order is significant: it
// fixes the column/field order of every export format.
package mapper

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"exportd/internal/value"
)

// ColumnMapping renames one result-set field (Source) to one output field
// (Target). Immutable once a job is created.
type ColumnMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Field is one ordered (target, value) pair produced by Apply.
type Field struct {
	Target string
	Value  value.Value
}

// Record is one mapped row: fields in mapping order.
type Record = []Field

// Normalize trims and NFC-normalizes the names in a mapping list so that
// visually identical headers compare equal regardless of how the client
// composed them.
func Normalize(cols []ColumnMapping) []ColumnMapping {
	out := make([]ColumnMapping, len(cols))
	for i, c := range cols {
		out[i] = ColumnMapping{
			Source: norm.NFC.String(strings.TrimSpace(c.Source)),
			Target: norm.NFC.String(strings.TrimSpace(c.Target)),
		}
	}
	return out
}

// Validate checks a normalized mapping list: it must be non-empty, both names
// of every pair must be non-empty, targets must be usable as output field
// names (they become XML element names), and the target set must be free of
// duplicates.
func Validate(cols []ColumnMapping) error {
	if len(cols) == 0 {
		return fmt.Errorf("at least one column mapping required")
	}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if c.Source == "" {
			return fmt.Errorf("column %d: source must not be empty", i)
		}
		if c.Target == "" {
			return fmt.Errorf("column %d: target must not be empty", i)
		}
		if !validTarget(c.Target) {
			return fmt.Errorf("column %d: target %q is not a valid field name", i, c.Target)
		}
		if _, dup := seen[c.Target]; dup {
			return fmt.Errorf("column %d: duplicate target %q", i, c.Target)
		}
		seen[c.Target] = struct{}{}
	}
	return nil
}

// validTarget accepts names usable as both CSV headers and XML element names:
// a letter or underscore followed by letters, digits, underscores, hyphens,
// or dots.
func validTarget(name string) bool {
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		case r == '-' || r == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(name) > 0
}

// Projection renders the quoted SQL select-list for the mapping's sources,
// in mapping order.
func Projection(cols []ColumnMapping) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pgIdent(c.Source)
	}
	return strings.Join(parts, ", ")
}

// Targets returns the ordered output field names.
func Targets(cols []ColumnMapping) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Target
	}
	return out
}

// Apply maps one raw row onto the ordered (target, value) pairs. A source
// name absent from the row yields a Null field.
func Apply(row map[string]value.Value, cols []ColumnMapping) Record {
	rec := make(Record, len(cols))
	for i, c := range cols {
		v, ok := row[c.Source]
		if !ok {
			v = value.Null()
		}
		rec[i] = Field{Target: c.Target, Value: v}
	}
	return rec
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
