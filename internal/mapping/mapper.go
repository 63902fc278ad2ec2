package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dedupehq/dedupe-backend/internal/schema"
)

// FieldMapping ties one canonical field to the source CSV columns that feed
// it. When several columns are listed their non-empty values are joined
// with Separator; empty source values never produce doubled separators.
type FieldMapping struct {
	Columns   []string `json:"columns"`
	Separator string   `json:"separator,omitempty"`
}

// Spec is the operator-supplied mapping from canonical field names to
// source columns, submitted alongside the uploaded file.
type Spec map[string]FieldMapping

// CanonicalRow is one CSV data row after mapping, keyed by canonical field
// name.
type CanonicalRow map[string]string

// SchemaError means the mapping cannot be resolved against the header at
// all. It is job-fatal: no rows are processed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required fields unresolved against header: %s", strings.Join(e.Missing, ", "))
}

// RowError marks a single unmappable data row. It never aborts the job;
// callers count it as skipped and continue.
type RowError struct {
	Line   int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.Line, e.Field, e.Reason)
}

const ReasonMissingRequiredValue = "missing-required-value"

// Mapper resolves a mapping spec against a concrete header row.
type Mapper struct {
	schema *schema.Schema
	spec   Spec
}

func New(sch *schema.Schema, spec Spec) *Mapper {
	return &Mapper{schema: sch, spec: spec}
}

type resolvedField struct {
	field     schema.Field
	indexes   []int
	separator string
}

// Stream is a lazy, single-pass iterator over mapped rows. The underlying
// reader is consumed exactly once; callers needing a second pass must
// reread the source.
type Stream struct {
	reader   *csv.Reader
	resolved []resolvedField
	line     int
}

// Stream reads the header row from r, resolves the spec against it and
// returns the row iterator. Unknown canonical field names in the spec and
// required fields with no present source column both fail with SchemaError
// before any data row is read.
func (m *Mapper) Stream(r io.Reader) (*Stream, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	resolved, err := m.resolve(header)
	if err != nil {
		return nil, err
	}
	return &Stream{reader: cr, resolved: resolved, line: 1}, nil
}

func (m *Mapper) resolve(header []string) ([]resolvedField, error) {
	position := make(map[string]int, len(header))
	for i, h := range header {
		// Exact, case-sensitive match; first occurrence wins.
		if _, seen := position[h]; !seen {
			position[h] = i
		}
	}

	var out []resolvedField
	var missing []string
	for _, field := range m.schema.Fields {
		fm, mapped := m.spec[field.Name]
		if !mapped || len(fm.Columns) == 0 {
			if field.Required {
				missing = append(missing, field.Name)
			}
			continue
		}
		var indexes []int
		for _, col := range fm.Columns {
			if idx, ok := position[col]; ok {
				indexes = append(indexes, idx)
			}
		}
		if len(indexes) == 0 {
			if field.Required {
				missing = append(missing, field.Name)
			}
			continue
		}
		out = append(out, resolvedField{field: field, indexes: indexes, separator: fm.Separator})
	}
	for name := range m.spec {
		if _, known := m.schema.FieldByName(name); !known {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return out, nil
}

// Next returns the next mapped row. Exactly one of the three results is
// set: a CanonicalRow, a RowError for a skippable row, or a terminal error
// (io.EOF when the source is exhausted).
func (s *Stream) Next() (CanonicalRow, *RowError, error) {
	for {
		raw, err := s.reader.Read()
		if err != nil {
			return nil, nil, err
		}
		s.line++

		if blankRow(raw) {
			continue
		}

		row := make(CanonicalRow, len(s.resolved))
		var rowErr *RowError
		for _, rf := range s.resolved {
			var parts []string
			for _, idx := range rf.indexes {
				if idx >= len(raw) {
					continue
				}
				if v := strings.TrimSpace(raw[idx]); v != "" {
					parts = append(parts, v)
				}
			}
			value := strings.Join(parts, rf.separator)
			if value == "" && rf.field.Required {
				rowErr = &RowError{Line: s.line, Field: rf.field.Name, Reason: ReasonMissingRequiredValue}
				break
			}
			row[rf.field.Name] = value
		}
		if rowErr != nil {
			return nil, rowErr, nil
		}
		return row, nil, nil
	}
}

// Line reports the 1-based line number of the most recently returned row.
func (s *Stream) Line() int { return s.line }

func blankRow(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
