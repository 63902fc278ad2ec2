package schema

import (
	"strings"
	"testing"
)

func TestDefaultSchema(t *testing.T) {
	s := Default()

	phone, ok := s.FieldByName("phone")
	if !ok {
		t.Fatalf("default schema has no phone field")
	}
	if !phone.Required || !phone.Identity || phone.Type != TypeNumber {
		t.Fatalf("phone = %+v", phone)
	}

	supplier, ok := s.FieldByName("supplier_name")
	if !ok || !supplier.Required || supplier.Identity {
		t.Fatalf("supplier_name = %+v", supplier)
	}

	if got := len(s.Identity()); got != 1 {
		t.Fatalf("identity fields = %d, want 1", got)
	}
	if got := len(s.Required()); got != 2 {
		t.Fatalf("required fields = %d, want 2", got)
	}
}

func TestParseValidDocument(t *testing.T) {
	s, err := Parse([]byte(`
fields:
  - name: phone
    label: Phone Number
    type: number
    required: true
    identity: true
  - name: email
    identity: true
  - name: last_name
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	email, _ := s.FieldByName("email")
	if email.Type != TypeString {
		t.Fatalf("missing type must default to string, got %q", email.Type)
	}
	if email.Label != "email" {
		t.Fatalf("missing label must default to the name, got %q", email.Label)
	}
	if got := s.Names(); len(got) != 3 || got[0] != "phone" {
		t.Fatalf("names = %v", got)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty",
			doc:  `fields: []`,
			want: "no fields",
		},
		{
			name: "unknown column",
			doc: `
fields:
  - name: shoe_size
    identity: true
`,
			want: "not a record column",
		},
		{
			name: "duplicate field",
			doc: `
fields:
  - name: phone
    identity: true
  - name: phone
`,
			want: "declared twice",
		},
		{
			name: "unknown type",
			doc: `
fields:
  - name: phone
    type: decimal
    identity: true
`,
			want: "unknown type",
		},
		{
			name: "no identity",
			doc: `
fields:
  - name: phone
  - name: email
`,
			want: "no identity",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err %q does not mention %q", err, tc.want)
			}
		})
	}
}
