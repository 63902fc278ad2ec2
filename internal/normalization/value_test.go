package normalization

import (
  "testing"

  "github.com/dedupehq/dedupe-backend/internal/schema"
)

func TestValue(t *testing.T) {
  cases := []struct {
    fieldType schema.FieldType
    in        string
    want      string
  }{
    {schema.TypeString, "  John SMITH ", "john smith"},
    {schema.TypeString, "", ""},
    {schema.TypeNumber, "+44 (0)7700-900123", "4407700900123"},
    {schema.TypeNumber, "007700", "7700"},
    {schema.TypeNumber, "000", "0"},
    {schema.TypeNumber, "no digits", ""},
    {schema.TypeDate, "01/02/1990", "1990-02-01"},
    {schema.TypeDate, "1990/02/01", "1990-02-01"},
    {schema.TypeDate, "1990-02-01", "1990-02-01"},
    {schema.TypeDate, "Not A Date", "not a date"},
  }
  for _, tc := range cases {
    if got := Value(tc.fieldType, tc.in); got != tc.want {
      t.Fatalf("Value(%s, %q) = %q, want %q", tc.fieldType, tc.in, got, tc.want)
    }
  }
}
