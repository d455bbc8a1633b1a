package core

import (
	"fmt"
	"strings"
)

// ColumnType is the normalized kind of a declared SQL column type. Two
// columns with the same kind compare by the same stored representation.
type ColumnType int

const (
	OtherType ColumnType = iota
	IntType
	FloatType
	TextType
	BoolType
	TimestampType
	BlobType
)

func (t ColumnType) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case TextType:
		return "text"
	case BoolType:
		return "bool"
	case TimestampType:
		return "timestamp"
	case BlobType:
		return "blob"
	default:
		return "other"
	}
}

// TypeOf maps a declared type name as reported by a driver (INTEGER, INT4,
// VARCHAR(20), DOUBLE PRECISION, ...) to its kind.
func TypeOf(declared string) ColumnType {
	d := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(d, '('); i >= 0 {
		d = strings.TrimSpace(d[:i])
	}

	switch {
	case d == "":
		return OtherType
	case strings.Contains(d, "INT") || d == "SERIAL" || d == "BIGSERIAL":
		return IntType
	case strings.HasPrefix(d, "FLOAT") || strings.HasPrefix(d, "DOUBLE") || d == "REAL" ||
		strings.HasPrefix(d, "NUMERIC") || strings.HasPrefix(d, "DECIMAL"):
		return FloatType
	case strings.Contains(d, "CHAR") || strings.Contains(d, "TEXT") || d == "STRING" || d == "UUID" || d == "JSON":
		return TextType
	case strings.HasPrefix(d, "BOOL"):
		return BoolType
	case strings.HasPrefix(d, "TIMESTAMP") || d == "DATE" || d == "DATETIME" || d == "TIME":
		return TimestampType
	case d == "BLOB" || d == "BYTEA":
		return BlobType
	default:
		return OtherType
	}
}

// Column is one attribute of a schema. Declared keeps the type name the
// backing store reported so tables can be recreated with the same type.
type Column struct {
	Name     string     `json:"name"`
	Declared string     `json:"declared"`
	Type     ColumnType `json:"type"`
}

// NewColumn builds a column whose kind is derived from the declared type.
func NewColumn(name, declared string) Column {
	return Column{Name: name, Declared: declared, Type: TypeOf(declared)}
}

// Schema is the ordered attribute list of a relation.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Names returns the attribute names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Lookup returns the position of the named attribute. Names compare
// case-insensitively since most engines fold unquoted identifiers.
func (s Schema) Lookup(name string) (int, bool) {
	for i, col := range s.Columns {
		if strings.EqualFold(col.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// Project returns the sub-schema for attrs in the given order.
func (s Schema) Project(attrs []string) (Schema, error) {
	cols := make([]Column, 0, len(attrs))
	var missing []string
	for _, attr := range attrs {
		i, ok := s.Lookup(attr)
		if !ok {
			missing = append(missing, attr)
			continue
		}
		cols = append(cols, s.Columns[i])
	}
	if len(missing) > 0 {
		return Schema{}, &SchemaMismatchError{Missing: missing}
	}
	return Schema{Columns: cols}, nil
}

// Without drops the named attribute, used to hide the rid column.
func (s Schema) Without(name string) Schema {
	cols := make([]Column, 0, len(s.Columns))
	for _, col := range s.Columns {
		if !strings.EqualFold(col.Name, name) {
			cols = append(cols, col)
		}
	}
	return Schema{Columns: cols}
}

func (s Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		parts[i] = fmt.Sprintf("%s %s", col.Name, col.Declared)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
