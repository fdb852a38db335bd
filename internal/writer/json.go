package writer

import (
	"bytes"
	"encoding/json"
	"io"

	"exportd/internal/mapper"
)

// JSON serializes rows as one array of record objects. Records stream out one
// by one; the array is never materialized. This is the only format that keeps
// nested values natively typed, and decimals are emitted as raw number tokens
// so they never pass through a binary float.
type JSON struct {
	wrote bool
	buf   bytes.Buffer // scratch, reused across batches
}

// NewJSON returns a JSON array-of-records writer. The field order of each
// record follows the mapping order.
func NewJSON(targets []string) *JSON {
	_ = targets // field names travel with each mapped record
	return &JSON{}
}

func (j *JSON) WriteHeader(w io.Writer) error {
	_, err := io.WriteString(w, "[")
	return err
}

func (j *JSON) WriteBatch(w io.Writer, rows []mapper.Record) error {
	j.buf.Reset()
	for _, rec := range rows {
		if j.wrote {
			j.buf.WriteByte(',')
		}
		j.wrote = true
		if err := encodeRecord(&j.buf, rec); err != nil {
			return err
		}
	}
	_, err := w.Write(j.buf.Bytes())
	return err
}

func (j *JSON) Finalize(w io.Writer) error {
	_, err := io.WriteString(w, "]")
	return err
}

// encodeRecord writes one record object with keys in mapping order.
// encoding/json alone would sort map keys, losing the configured order.
func encodeRecord(buf *bytes.Buffer, rec mapper.Record) error {
	buf.WriteByte('{')
	for i, f := range rec {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Target)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value.JSONValue())
		if err != nil {
			return err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
