package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"exportd/internal/mapper"
	"exportd/internal/value"
)

const (
	xmlPrologue = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"
	xmlRoot     = "records"
	xmlRecord   = "record"
	xmlItem     = "item"
)

// XML serializes rows as a flat document: one <record> element per row, one
// child element per mapped column. This is an eager string-building format;
// no attribute-based compaction.
//
// Rendering rules: a null column is a self-closing empty element, a nested
// object becomes one element per key (sorted), a nested array becomes
// repeated <item> elements, and scalar leaves are text-escaped.
type XML struct {
	buf bytes.Buffer // scratch, reused across batches
}

// NewXML returns an XML writer. Element names come from the mapping targets,
// which validation restricts to legal element names.
func NewXML(targets []string) *XML {
	_ = targets
	return &XML{}
}

func (x *XML) WriteHeader(w io.Writer) error {
	_, err := io.WriteString(w, xmlPrologue+"<"+xmlRoot+">\n")
	return err
}

func (x *XML) WriteBatch(w io.Writer, rows []mapper.Record) error {
	x.buf.Reset()
	for _, rec := range rows {
		x.buf.WriteString("  <" + xmlRecord + ">")
		for _, f := range rec {
			writeColumn(&x.buf, f.Target, f.Value)
		}
		x.buf.WriteString("</" + xmlRecord + ">\n")
	}
	_, err := w.Write(x.buf.Bytes())
	return err
}

func (x *XML) Finalize(w io.Writer) error {
	_, err := io.WriteString(w, "</"+xmlRoot+">\n")
	return err
}

func writeColumn(buf *bytes.Buffer, name string, v value.Value) {
	if v.IsNull() {
		buf.WriteString("<" + name + "/>")
		return
	}
	if v.Kind() == value.KindNested {
		buf.WriteString("<" + name + ">")
		writeTree(buf, v.Tree())
		buf.WriteString("</" + name + ">")
		return
	}
	buf.WriteString("<" + name + ">")
	escapeXML(buf, v.FlatString())
	buf.WriteString("</" + name + ">")
}

// writeTree renders a nested JSON tree as elements: objects become one
// element per key (sorted for determinism), arrays become repeated <item>
// elements, scalars become escaped text.
func writeTree(buf *bytes.Buffer, tree any) {
	switch t := tree.(type) {
	case nil:
		// nothing; the enclosing element stays empty
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := t[k]
			if child == nil {
				buf.WriteString("<" + k + "/>")
				continue
			}
			buf.WriteString("<" + k + ">")
			writeTree(buf, child)
			buf.WriteString("</" + k + ">")
		}
	case []any:
		for _, el := range t {
			if el == nil {
				buf.WriteString("<" + xmlItem + "/>")
				continue
			}
			buf.WriteString("<" + xmlItem + ">")
			writeTree(buf, el)
			buf.WriteString("</" + xmlItem + ">")
		}
	case string:
		escapeXML(buf, t)
	case json.Number:
		buf.WriteString(t.String())
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	default:
		escapeXML(buf, fmt.Sprint(t))
	}
}

// escapeXML writes s with the five predefined entities replaced.
func escapeXML(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
}
