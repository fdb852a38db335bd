// Package value defines the closed set of value kinds that can travel through
// an export pipeline, and the canonical textual encodings used when a value
// must be flattened into a text field.
//
// The variant is deliberately closed: every writer serializes values with one
// exhaustive switch over Kind instead of runtime type inspection. Decimals are
// carried as canonical strings end to end so that no binary floating-point
// rounding can ever leak into an export.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which arm of a Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInteger
	KindDecimal
	KindBoolean
	KindTimestamp
	KindNested
)

// String returns a short name for the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindNested:
		return "nested"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// TimestampLayout is the flat-text layout for timestamps: RFC 3339 with
// millisecond precision, matching the millisecond-epoch type used by the
// binary columnar format.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Value is a tagged variant over the exportable value kinds. The zero Value
// is Null.
type Value struct {
	kind Kind

	text    string // Text and Decimal arms
	integer int64
	boolean bool
	ts      time.Time

	// nested holds a decoded JSON tree: map[string]any, []any, string,
	// json.Number, bool, or nil. Numbers inside trees are json.Number so
	// decimals survive a round-trip without float conversion.
	nested any
}

func Null() Value                 { return Value{} }
func Text(s string) Value         { return Value{kind: KindText, text: s} }
func Integer(i int64) Value       { return Value{kind: KindInteger, integer: i} }
func Boolean(b bool) Value        { return Value{kind: KindBoolean, boolean: b} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Decimal wraps a canonical decimal string such as "1234.5000". The string is
// stored verbatim; trailing zeros are significant and preserved.
func Decimal(s string) Value { return Value{kind: KindDecimal, text: s} }

// Nested wraps a decoded JSON tree. Callers must decode numbers with
// json.Decoder.UseNumber so the tree carries json.Number, not float64.
func Nested(tree any) Value { return Value{kind: KindNested, nested: tree} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Str() string     { return v.text }
func (v Value) Int() int64      { return v.integer }
func (v Value) Bool() bool      { return v.boolean }
func (v Value) Time() time.Time { return v.ts }
func (v Value) Tree() any       { return v.nested }

// FlatString renders the value for embedding in a flat text field (CSV cell,
// XML leaf, parquet string column). Null renders as the empty string; nested
// values render as their canonical JSON text.
func (v Value) FlatString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindText:
		return v.text
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	case KindDecimal:
		return v.text
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindTimestamp:
		return v.ts.Format(TimestampLayout)
	case KindNested:
		return CanonicalJSON(v.nested)
	}
	panic("value: unknown kind " + v.kind.String())
}

// JSONValue returns a representation suitable for encoding/json marshaling
// that preserves typing: decimals become raw number tokens (never float64),
// nested trees stay structured, timestamps become flat-text strings.
func (v Value) JSONValue() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindText:
		return v.text
	case KindInteger:
		return v.integer
	case KindDecimal:
		return json.RawMessage(v.text)
	case KindBoolean:
		return v.boolean
	case KindTimestamp:
		return v.ts.Format(TimestampLayout)
	case KindNested:
		return canonicalTree(v.nested)
	}
	panic("value: unknown kind " + v.kind.String())
}

// CanonicalJSON encodes a nested tree as compact JSON with object keys in
// sorted order, so the same tree always yields the same bytes. json.Number
// values are emitted verbatim.
func CanonicalJSON(tree any) string {
	var b bytes.Buffer
	writeCanonical(&b, tree)
	return b.String()
}

// canonicalTree rebuilds a tree so that encoding/json emits it in canonical
// form. Maps already marshal with sorted keys; this pass only normalizes the
// leaf types.
func canonicalTree(tree any) any {
	switch t := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = canonicalTree(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = canonicalTree(v)
		}
		return out
	case json.Number:
		return json.RawMessage(t.String())
	default:
		return t
	}
}

func writeCanonical(b *bytes.Buffer, tree any) {
	switch t := tree.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, v := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, v)
		}
		b.WriteByte(']')
	case json.Number:
		b.WriteString(t.String())
	case string:
		writeJSONString(b, t)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case float64:
		// Trees decoded with UseNumber never contain float64, but tolerate
		// callers that hand us plain decoded JSON.
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			writeJSONString(b, fmt.Sprint(t))
			return
		}
		b.Write(enc)
	}
}

// writeJSONString writes s as a JSON string literal using encoding/json so
// escaping stays consistent with the array-of-records writer.
func writeJSONString(b *bytes.Buffer, s string) {
	enc, err := json.Marshal(s)
	if err != nil {
		// Marshaling a string cannot fail; keep the fallback anyway.
		b.WriteString(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
		return
	}
	b.Write(enc)
}

// ParseTree decodes raw JSON bytes into a nested tree with numbers kept as
// json.Number. It is the single decoding path for semi-structured columns.
func ParseTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode nested value: %w", err)
	}
	return tree, nil
}
