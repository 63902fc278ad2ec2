package dedup

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/dedupehq/dedupe-backend/internal/mapping"
	"github.com/dedupehq/dedupe-backend/internal/normalization"
	"github.com/dedupehq/dedupe-backend/internal/schema"
)

// Fingerprint computes the stable dedup key for a mapped row: the xxh3
// 128-bit digest over the normalized identity fields, keyed and sorted by
// field name so the digest is independent of schema order.
func Fingerprint(sch *schema.Schema, row mapping.CanonicalRow) string {
	identity := sch.Identity()
	parts := make([]string, 0, len(identity))
	for _, f := range identity {
		parts = append(parts, f.Name+"="+normalization.Value(f.Type, row[f.Name]))
	}
	sort.Strings(parts)

	sum := xxh3.Hash128([]byte(strings.Join(parts, "\x1f"))).Bytes()
	return hex.EncodeToString(sum[:])
}
