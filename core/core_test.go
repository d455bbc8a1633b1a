package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		declared string
		want     ColumnType
	}{
		{"INTEGER", IntType},
		{"int8", IntType},
		{"BIGINT", IntType},
		{"VARCHAR(20)", TextType},
		{"text", TextType},
		{"DOUBLE PRECISION", FloatType},
		{"NUMERIC(10,2)", FloatType},
		{"REAL", FloatType},
		{"BOOLEAN", BoolType},
		{"TIMESTAMP WITH TIME ZONE", TimestampType},
		{"DATE", TimestampType},
		{"BYTEA", BlobType},
		{"", OtherType},
		{"GEOMETRY", OtherType},
	}

	for _, tt := range tests {
		if got := TypeOf(tt.declared); got != tt.want {
			t.Errorf("TypeOf(%q) = %v, want %v", tt.declared, got, tt.want)
		}
	}
}

func TestSchemaProject(t *testing.T) {
	schema := Schema{Columns: []Column{
		NewColumn("id", "INTEGER"),
		NewColumn("Item", "TEXT"),
		NewColumn("price", "REAL"),
	}}

	projected, err := schema.Project([]string{"price", "item"})
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if names := projected.Names(); len(names) != 2 || names[0] != "price" || names[1] != "Item" {
		t.Errorf("Unexpected projection: %v", names)
	}

	_, err = schema.Project([]string{"id", "qty"})
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected SchemaMismatchError, got %v", err)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0] != "qty" {
		t.Errorf("Unexpected missing list: %v", mismatch.Missing)
	}

	if without := schema.Without("ID"); len(without.Columns) != 2 {
		t.Errorf("Expected 2 columns after Without, got %d", len(without.Columns))
	}
}

func TestEqualRows(t *testing.T) {
	if !EqualRows(Row{int32(1), []byte("a"), nil}, Row{int64(1), "a", nil}) {
		t.Error("Expected normalized rows to be equal")
	}
	if EqualRows(Row{int64(1)}, Row{"1"}) {
		t.Error("Expected int and text to differ")
	}
	if EqualRows(Row{1.0}, Row{int64(1)}) {
		t.Error("Expected float and int to differ")
	}
	if EqualRows(Row{"a", "bc"}, Row{"ab", "c"}) {
		t.Error("Expected tuple boundaries to matter")
	}
	if EqualRows(Row{nil}, Row{""}) {
		t.Error("Expected NULL and empty string to differ")
	}
}

func TestParseText(t *testing.T) {
	v, err := ParseText("42", IntType)
	if err != nil || v != int64(42) {
		t.Errorf("ParseText int = %v, %v", v, err)
	}
	v, err = ParseText("", IntType)
	if err != nil || v != nil {
		t.Errorf("ParseText empty int = %v, %v", v, err)
	}
	v, err = ParseText("", TextType)
	if err != nil || v != nil {
		t.Errorf("ParseText empty text = %v, %v", v, err)
	}
	v, err = ParseText(FormatValue(nil), OtherType)
	if err != nil || v != nil {
		t.Errorf("ParseText of a written NULL = %v, %v", v, err)
	}
	v, err = ParseText("2.5", FloatType)
	if err != nil || v != 2.5 {
		t.Errorf("ParseText float = %v, %v", v, err)
	}
	v, err = ParseText("2024-01-02", TimestampType)
	if err != nil || !v.(time.Time).Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseText timestamp = %v, %v", v, err)
	}
	if _, err := ParseText("abc", IntType); err == nil {
		t.Error("Expected error parsing abc as int")
	}
}

func TestVersionsRoundTrip(t *testing.T) {
	vids, err := ParseVersions(" 1, 2,3 ")
	if err != nil {
		t.Fatalf("ParseVersions failed: %v", err)
	}
	if FormatVersions(vids) != "1,2,3" {
		t.Errorf("FormatVersions = %s", FormatVersions(vids))
	}

	_, err = ParseVersions("1,x")
	var bad *BadParametersError
	if !errors.As(err, &bad) {
		t.Errorf("Expected BadParametersError, got %v", err)
	}
}

func TestDatasetTableNames(t *testing.T) {
	if DataTable("orders") != "orders_datatable" ||
		GraphTable("orders") != "orders_version" ||
		IndexTable("orders") != "orders_indexTbl" {
		t.Error("Unexpected dataset table names")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("refused")
	err := fmt.Errorf("open: %w", &ConnectionError{Err: cause})
	if !errors.Is(err, cause) {
		t.Error("Expected ConnectionError to unwrap")
	}

	stmt := &StatementError{Statement: "SELECT   *\n FROM t", Err: cause}
	if stmt.Error() != "statement failed: refused (SELECT * FROM t)" {
		t.Errorf("Unexpected message: %s", stmt.Error())
	}

	var temp interface{ Temporary() bool }
	if !errors.As(error(&ConcurrentModificationError{Dataset: "d"}), &temp) || !temp.Temporary() {
		t.Error("Expected ConcurrentModificationError to be temporary")
	}
}

func TestIdentity(t *testing.T) {
	id := Identity{Name: "Ada", Email: "ada@example.com"}
	if id.String() != "Ada <ada@example.com>" {
		t.Errorf("Unexpected identity string: %s", id.String())
	}
}
