package rowsource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"exportd/internal/value"
)

// scanRow scans the current row into source-keyed Values. Scan destinations
// are chosen by type OID so that numerics arrive as exact decimals and
// json/jsonb arrives as raw bytes we decode ourselves (numbers kept as
// json.Number, never float64).
func scanRow(rows pgx.Rows) (Row, error) {
	fds := rows.FieldDescriptions()
	dests := make([]any, len(fds))
	for i, fd := range fds {
		switch fd.DataTypeOID {
		case pgtype.NumericOID:
			dests[i] = new(pgtype.Numeric)
		case pgtype.JSONOID, pgtype.JSONBOID:
			dests[i] = new([]byte)
		case pgtype.UUIDOID:
			dests[i] = new(pgtype.UUID)
		default:
			dests[i] = new(any)
		}
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	row := make(Row, len(fds))
	for i, fd := range fds {
		v, err := toValue(dests[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", fd.Name, err)
		}
		row[fd.Name] = v
	}
	return row, nil
}

// toValue converts one scanned destination into the closed value variant.
func toValue(dest any) (value.Value, error) {
	switch d := dest.(type) {
	case *pgtype.Numeric:
		if !d.Valid {
			return value.Null(), nil
		}
		s, err := numericText(*d)
		if err != nil {
			return value.Value{}, err
		}
		return value.Decimal(s), nil

	case *pgtype.UUID:
		if !d.Valid {
			return value.Null(), nil
		}
		return value.Text(uuidText(d.Bytes)), nil

	case *[]byte:
		if *d == nil {
			return value.Null(), nil
		}
		tree, err := value.ParseTree(*d)
		if err != nil {
			return value.Value{}, err
		}
		return value.Nested(tree), nil

	case *any:
		return fromNative(*d)
	}
	return value.Value{}, fmt.Errorf("unhandled scan destination %T", dest)
}

// fromNative converts a value pgx produced for an *any destination.
func fromNative(v any) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Null(), nil
	case string:
		return value.Text(t), nil
	case int64:
		return value.Integer(t), nil
	case int32:
		return value.Integer(int64(t)), nil
	case int16:
		return value.Integer(int64(t)), nil
	case bool:
		return value.Boolean(t), nil
	case time.Time:
		return value.Timestamp(t), nil
	case float64:
		// float4/float8 columns have no exact decimal form; 'g'/-1 is the
		// shortest string that round-trips the stored double exactly.
		return value.Decimal(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case float32:
		return value.Decimal(strconv.FormatFloat(float64(t), 'g', -1, 32)), nil
	case []byte:
		return value.Text(string(t)), nil
	default:
		return value.Text(fmt.Sprint(t)), nil
	}
}

// numericText renders a pgtype.Numeric as exact fixed-point text, preserving
// scale: 12345000 * 10^-4 renders as "1234.5000", not "1234.5".
func numericText(n pgtype.Numeric) (string, error) {
	if n.NaN {
		return "", fmt.Errorf("numeric NaN cannot be exported as a decimal")
	}
	if n.InfinityModifier != pgtype.Finite {
		return "", fmt.Errorf("infinite numeric cannot be exported as a decimal")
	}
	if n.Int == nil {
		return "0", nil
	}

	digits := n.Int.String()
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}

	exp := int(n.Exp)
	var s string
	switch {
	case exp >= 0:
		s = digits + strings.Repeat("0", exp)
	default:
		scale := -exp
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		point := len(digits) - scale
		s = digits[:point] + "." + digits[point:]
	}
	if neg {
		s = "-" + s
	}
	return s, nil
}

// uuidText formats a 16-byte uuid in the canonical 8-4-4-4-12 form.
func uuidText(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
