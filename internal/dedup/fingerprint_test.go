package dedup

import (
	"testing"

	"github.com/dedupehq/dedupe-backend/internal/mapping"
	"github.com/dedupehq/dedupe-backend/internal/schema"
)

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	sch := schema.Default()

	a := Fingerprint(sch, mapping.CanonicalRow{"phone": "07700 900123"})
	b := Fingerprint(sch, mapping.CanonicalRow{"phone": "+44 (0)7700-900123"})
	if a == b {
		t.Fatalf("different numbers must not collide")
	}

	c := Fingerprint(sch, mapping.CanonicalRow{"phone": "07700900123"})
	d := Fingerprint(sch, mapping.CanonicalRow{"phone": " 07700 900 123 "})
	if c != d {
		t.Fatalf("same number with different formatting must collide: %s vs %s", c, d)
	}
	if len(c) != 32 {
		t.Fatalf("fingerprint length = %d, want 32 hex chars", len(c))
	}
}

func TestFingerprintIgnoresNonIdentityFields(t *testing.T) {
	sch := schema.Default()
	a := Fingerprint(sch, mapping.CanonicalRow{"phone": "07700900123", "email": "a@example.com"})
	b := Fingerprint(sch, mapping.CanonicalRow{"phone": "07700900123", "email": "b@example.com"})
	if a != b {
		t.Fatalf("non-identity fields must not affect the fingerprint")
	}
}

func TestFingerprintMultiIdentitySchema(t *testing.T) {
	sch, err := schema.Parse([]byte(`
fields:
  - name: phone
    type: number
    identity: true
  - name: email
    type: string
    identity: true
  - name: last_name
    type: string
`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	a := Fingerprint(sch, mapping.CanonicalRow{"phone": "0123", "email": "A@Example.COM"})
	b := Fingerprint(sch, mapping.CanonicalRow{"phone": "123", "email": "a@example.com"})
	if a != b {
		t.Fatalf("normalized identity fields must collide")
	}

	c := Fingerprint(sch, mapping.CanonicalRow{"phone": "123", "email": "other@example.com"})
	if a == c {
		t.Fatalf("changing any identity field must change the fingerprint")
	}
}
