package mapping

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dedupehq/dedupe-backend/internal/schema"
)

func streamAll(t *testing.T, spec Spec, csvData string) ([]CanonicalRow, []*RowError) {
	t.Helper()
	m := New(schema.Default(), spec)
	st, err := m.Stream(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var rows []CanonicalRow
	var rowErrs []*RowError
	for {
		row, rowErr, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rowErr != nil {
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs
}

func TestStreamMapsSingleColumns(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Mobile"}},
		"supplier_name": {Columns: []string{"Source"}},
		"first_name":    {Columns: []string{"Given"}},
	}
	rows, rowErrs := streamAll(t, spec, "Mobile,Source,Given\n7123456789,acme,Ann\n")
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got["phone"] != "7123456789" || got["supplier_name"] != "acme" || got["first_name"] != "Ann" {
		t.Fatalf("unexpected row: %v", got)
	}
}

func TestStreamJoinsMultiColumnsWithSeparator(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
		"email":         {Columns: []string{"Email", "Email2"}, Separator: "; "},
	}
	rows, _ := streamAll(t, spec, "Phone,Supplier,Email,Email2\n7000000001,s,a@x.com,a@y.com\n7000000002,s,b@x.com,\n")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["email"] != "a@x.com; a@y.com" {
		t.Fatalf("joined email = %q", rows[0]["email"])
	}
	// Empty second column must not leave a trailing separator.
	if rows[1]["email"] != "b@x.com" {
		t.Fatalf("email with empty segment = %q", rows[1]["email"])
	}
}

func TestStreamRequiredColumnMissingFailsFast(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
	}
	m := New(schema.Default(), spec)
	_, err := m.Stream(strings.NewReader("Telephone,Supplier\n7123456789,acme\n"))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "phone" {
		t.Fatalf("missing = %v", schemaErr.Missing)
	}
}

func TestStreamRequiredFieldUnmappedFailsFast(t *testing.T) {
	spec := Spec{
		"phone": {Columns: []string{"Phone"}},
		// supplier_name is required but not mapped at all.
	}
	m := New(schema.Default(), spec)
	_, err := m.Stream(strings.NewReader("Phone\n7123456789\n"))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want SchemaError, got %v", err)
	}
}

func TestStreamUnknownSpecFieldFailsFast(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
		"shoe_size":     {Columns: []string{"Shoe"}},
	}
	m := New(schema.Default(), spec)
	_, err := m.Stream(strings.NewReader("Phone,Supplier,Shoe\n7,s,44\n"))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want SchemaError, got %v", err)
	}
}

func TestStreamEmptyRequiredValueYieldsRowError(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
	}
	rows, rowErrs := streamAll(t, spec, "Phone,Supplier\n7123456789,acme\n,acme\n7222222222,acme\n")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rowErrs) != 1 {
		t.Fatalf("got %d row errors, want 1", len(rowErrs))
	}
	if rowErrs[0].Reason != ReasonMissingRequiredValue || rowErrs[0].Field != "phone" {
		t.Fatalf("row error = %+v", rowErrs[0])
	}
}

func TestStreamSkipsBlankRows(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
	}
	rows, rowErrs := streamAll(t, spec, "Phone,Supplier\n7123456789,acme\n,\n7222222222,acme\n")
	if len(rowErrs) != 0 {
		t.Fatalf("blank row reported as error: %v", rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestStreamRaggedRowTreatedAsEmpty(t *testing.T) {
	spec := Spec{
		"phone":         {Columns: []string{"Phone"}},
		"supplier_name": {Columns: []string{"Supplier"}},
		"city":          {Columns: []string{"City"}},
	}
	rows, _ := streamAll(t, spec, "Phone,Supplier,City\n7123456789,acme\n")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["city"] != "" {
		t.Fatalf("city = %q, want empty", rows[0]["city"])
	}
}
