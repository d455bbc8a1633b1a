package core

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is an ordered attribute tuple, aligned with a Schema.
type Row []any

// Normalize widens a scanned driver value to the representation used for
// equality: integers become int64, floats float64, byte slices string and
// times UTC. Anything else is returned as is.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return strconv.FormatUint(x, 10)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return x
	}
}

// NormalizeRow normalizes every value of r in place and returns it.
func NormalizeRow(r Row) Row {
	for i, v := range r {
		r[i] = Normalize(v)
	}
	return r
}

// AppendTuple appends a type-tagged, unambiguous encoding of the normalized
// values of r to buf. Two rows encode identically iff every value is equal
// in both kind and content.
func AppendTuple(buf []byte, r Row) []byte {
	for _, v := range r {
		switch x := Normalize(v).(type) {
		case nil:
			buf = append(buf, 'n')
		case int64:
			buf = append(buf, 'i')
			buf = strconv.AppendInt(buf, x, 10)
		case float64:
			buf = append(buf, 'f')
			buf = strconv.AppendUint(buf, math.Float64bits(x), 16)
		case bool:
			buf = append(buf, 'b')
			buf = strconv.AppendBool(buf, x)
		case string:
			buf = append(buf, 's')
			buf = strconv.AppendInt(buf, int64(len(x)), 10)
			buf = append(buf, ':')
			buf = append(buf, x...)
		case time.Time:
			buf = append(buf, 't')
			buf = x.AppendFormat(buf, time.RFC3339Nano)
		default:
			s := fmt.Sprintf("%T:%v", x, x)
			buf = append(buf, 'o')
			buf = strconv.AppendInt(buf, int64(len(s)), 10)
			buf = append(buf, ':')
			buf = append(buf, s...)
		}
		buf = append(buf, 0x1f)
	}
	return buf
}

// EqualRows reports whether a and b have equal normalized values.
func EqualRows(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	return bytes.Equal(AppendTuple(nil, a), AppendTuple(nil, b))
}

// FormatValue renders a value for delimited output and display.
func FormatValue(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// ParseText converts a value read from a delimited file to the
// representation a column of kind t stores. An empty field is NULL for every
// kind, matching how FormatValue writes NULL.
func ParseText(s string, t ColumnType) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch t {
	case TextType, BlobType, OtherType:
		return s, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch t {
	case IntType:
		return strconv.ParseInt(s, 10, 64)
	case FloatType:
		return strconv.ParseFloat(s, 64)
	case BoolType:
		return strconv.ParseBool(s)
	case TimestampType:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	return s, nil
}
