package normalization

import (
  "strings"
  "time"
  "unicode"

  "github.com/dedupehq/dedupe-backend/internal/schema"
)

// dateLayouts are tried in order when canonicalizing date values.
var dateLayouts = []string{
  "2006-01-02",
  "2006/01/02",
  "02/01/2006",
  "02-01-2006",
}

// Value canonicalizes one field value before hashing or comparison.
// Strings are trimmed and case-folded; numbers are reduced to their digits
// with leading zeros dropped; dates collapse to YYYY-MM-DD when they parse.
func Value(fieldType schema.FieldType, value string) string {
  v := strings.TrimSpace(value)
  switch fieldType {
  case schema.TypeNumber:
    var b strings.Builder
    for _, r := range v {
      if unicode.IsDigit(r) {
        b.WriteRune(r)
      }
    }
    digits := strings.TrimLeft(b.String(), "0")
    if digits == "" && b.Len() > 0 {
      digits = "0"
    }
    return digits
  case schema.TypeDate:
    for _, layout := range dateLayouts {
      if t, err := time.Parse(layout, v); err == nil {
        return t.Format("2006-01-02")
      }
    }
    return strings.ToLower(v)
  default:
    return strings.ToLower(v)
  }
}
