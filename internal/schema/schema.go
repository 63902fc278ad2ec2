package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dedupehq/dedupe-backend/internal/types"
)

// FieldType drives normalization and which comparators the search
// translator accepts for a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
)

// Field describes one canonical record field. Name is the storage column,
// Label is what operators see in upload mappings and search UIs.
type Field struct {
	Name     string    `yaml:"name"`
	Label    string    `yaml:"label"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Identity bool      `yaml:"identity"`
}

// Schema is the ordered canonical record schema. It is the single
// allow-list consulted by the column mapper, the dedup engine and the
// search translator.
type Schema struct {
	Fields []Field `yaml:"fields"`

	byName map[string]Field
}

type document struct {
	Fields []Field `yaml:"fields"`
}

// Default returns the built-in contact schema.
func Default() *Schema {
	s := &Schema{Fields: []Field{
		{Name: "title", Label: "Title", Type: TypeString},
		{Name: "first_name", Label: "First Name", Type: TypeString},
		{Name: "last_name", Label: "Last Name", Type: TypeString},
		{Name: "phone", Label: "Phone", Type: TypeNumber, Required: true, Identity: true},
		{Name: "email", Label: "Email", Type: TypeString},
		{Name: "address", Label: "Address", Type: TypeString},
		{Name: "city", Label: "City", Type: TypeString},
		{Name: "postcode", Label: "Postcode", Type: TypeString},
		{Name: "dob", Label: "DOB", Type: TypeDate},
		{Name: "supplier_name", Label: "Supplier", Type: TypeString, Required: true},
		{Name: "bsc", Label: "BSC", Type: TypeString},
		{Name: "delivery", Label: "Delivery", Type: TypeString},
	}}
	if err := s.compile(); err != nil {
		// The built-in schema is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return s
}

// LoadFile reads a YAML schema document. An empty path returns Default().
func LoadFile(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML schema document.
func Parse(raw []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema yaml: %w", err)
	}
	s := &Schema{Fields: doc.Fields}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) compile() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	s.byName = make(map[string]Field, len(s.Fields))
	identity := 0
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if !types.HasColumn(f.Name) {
			return fmt.Errorf("schema field %q is not a record column", f.Name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		switch f.Type {
		case TypeString, TypeNumber, TypeDate:
		case "":
			f.Type = TypeString
			s.Fields[i] = f
		default:
			return fmt.Errorf("schema field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Label == "" {
			f.Label = f.Name
			s.Fields[i] = f
		}
		if f.Identity {
			identity++
		}
		s.byName[f.Name] = s.Fields[i]
	}
	if identity == 0 {
		return fmt.Errorf("schema declares no identity field")
	}
	return nil
}

// FieldByName returns the field spec for a canonical name.
func (s *Schema) FieldByName(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Required returns the required fields in schema order.
func (s *Schema) Required() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Identity returns the identity fields (the fingerprint subset) in schema
// order.
func (s *Schema) Identity() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Identity {
			out = append(out, f)
		}
	}
	return out
}

// Names returns all canonical field names in schema order.
func (s *Schema) Names() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}
