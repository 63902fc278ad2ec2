package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/mapping"
	"github.com/dedupehq/dedupe-backend/internal/normalization"
	"github.com/dedupehq/dedupe-backend/internal/repos"
	"github.com/dedupehq/dedupe-backend/internal/schema"
	"github.com/dedupehq/dedupe-backend/internal/types"
)

// MergePolicy decides what happens when an incoming row shares a
// fingerprint with an existing record but differs in non-identity fields.
type MergePolicy string

const (
	// MergeFillMissing copies incoming values only into fields the existing
	// record left empty (first write wins on conflicts). Default.
	MergeFillMissing MergePolicy = "fill-missing"
	// MergePreferIncoming overwrites with any differing incoming value.
	MergePreferIncoming MergePolicy = "prefer-incoming"
	// MergeNever always skips duplicates.
	MergeNever MergePolicy = "skip"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MergeFillMissing, "":
		return MergeFillMissing, nil
	case MergePreferIncoming:
		return MergePreferIncoming, nil
	case MergeNever:
		return MergeNever, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

// Kind is the engine's per-row verdict.
type Kind int

const (
	KindInserted Kind = iota
	KindMerged
	KindSkipped
)

// Skip reasons mirror the duplicate classes operators see in reports.
const (
	SkipDuplicateInFile         = "duplicate-in-file"
	SkipDuplicateInStore        = "duplicate-in-store"
	SkipDuplicateInFileAndStore = "duplicate-in-file-and-store"
)

type Outcome struct {
	Kind        Kind
	Fingerprint string
	Reason      string
	RecordID    string
}

// ConsistencyError reports more than one stored record sharing a
// fingerprint. It is never silently resolved; the job fails and the error
// is escalated.
type ConsistencyError struct {
	Fingerprint string
	Matches     int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("fingerprint %s matches %d records, expected at most one", e.Fingerprint, e.Matches)
}

// Engine makes insert/skip/merge decisions against the record store.
type Engine struct {
	db      *gorm.DB
	log     *logger.Logger
	schema  *schema.Schema
	records repos.RecordRepo
	policy  MergePolicy
	now     func() time.Time
}

func NewEngine(db *gorm.DB, baseLog *logger.Logger, sch *schema.Schema, records repos.RecordRepo, policy MergePolicy) *Engine {
	return &Engine{
		db:      db,
		log:     baseLog.With("component", "DedupEngine"),
		schema:  sch,
		records: records,
		policy:  policy,
		now:     time.Now,
	}
}

// Session scopes engine state to one ingest job: the set of fingerprints
// already seen in this file (for duplicate classification) and whether the
// job writes rows or only reports.
type Session struct {
	engine *Engine
	write  bool
	seen   map[string]struct{}
}

func (e *Engine) NewSession(write bool) *Session {
	return &Session{engine: e, write: write, seen: make(map[string]struct{})}
}

// Resolve decides one mapped row. In write mode the lookup and the
// insert/merge run inside a single transaction with the matching rows
// locked, so two workers can never both decide Insert for one fingerprint;
// the unique fingerprint index is the backstop, and a loser of that race
// re-resolves against the winner's row.
func (s *Session) Resolve(ctx context.Context, row mapping.CanonicalRow) (Outcome, error) {
	e := s.engine
	fp := Fingerprint(e.schema, row)
	_, inFile := s.seen[fp]
	s.seen[fp] = struct{}{}

	if !s.write {
		return s.resolveReadOnly(ctx, fp, inFile)
	}
	row = e.storedRow(row)

	var out Outcome
	resolveOnce := func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := e.records.FindByFingerprint(ctx, tx, fp, true)
			if err != nil {
				return err
			}
			switch len(existing) {
			case 0:
				rec := types.NewRecord(fp, row, e.now())
				if err := e.records.Insert(ctx, tx, rec); err != nil {
					return err
				}
				out = Outcome{Kind: KindInserted, Fingerprint: fp, RecordID: rec.ID.String()}
				return nil
			case 1:
				out = s.mergeOrSkip(existing[0], row, fp, inFile)
				if out.Kind == KindMerged {
					return e.applyMerge(ctx, tx, existing[0], row)
				}
				return nil
			default:
				return &ConsistencyError{Fingerprint: fp, Matches: len(existing)}
			}
		})
	}

	err := resolveOnce()
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the insert race to a concurrent worker; the row now exists,
		// so a second pass lands on the merge/skip path.
		e.log.Debug("Insert race on fingerprint, re-resolving", "fingerprint", fp)
		err = resolveOnce()
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (s *Session) resolveReadOnly(ctx context.Context, fp string, inFile bool) (Outcome, error) {
	existing, err := s.engine.records.FindByFingerprint(ctx, nil, fp, false)
	if err != nil {
		return Outcome{}, err
	}
	if len(existing) > 1 {
		return Outcome{}, &ConsistencyError{Fingerprint: fp, Matches: len(existing)}
	}
	inStore := len(existing) == 1
	switch {
	case inFile && inStore:
		return Outcome{Kind: KindSkipped, Fingerprint: fp, Reason: SkipDuplicateInFileAndStore}, nil
	case inFile:
		return Outcome{Kind: KindSkipped, Fingerprint: fp, Reason: SkipDuplicateInFile}, nil
	case inStore:
		return Outcome{Kind: KindSkipped, Fingerprint: fp, Reason: SkipDuplicateInStore, RecordID: existing[0].ID.String()}, nil
	}
	return Outcome{Kind: KindInserted, Fingerprint: fp}, nil
}

func (s *Session) mergeOrSkip(existing *types.Record, row mapping.CanonicalRow, fp string, inFile bool) Outcome {
	reason := SkipDuplicateInStore
	if inFile {
		reason = SkipDuplicateInFile
	}
	if s.engine.policy == MergeNever {
		return Outcome{Kind: KindSkipped, Fingerprint: fp, Reason: reason, RecordID: existing.ID.String()}
	}
	if len(s.engine.mergeDelta(existing, row)) == 0 {
		return Outcome{Kind: KindSkipped, Fingerprint: fp, Reason: reason, RecordID: existing.ID.String()}
	}
	return Outcome{Kind: KindMerged, Fingerprint: fp, RecordID: existing.ID.String()}
}

func (e *Engine) applyMerge(ctx context.Context, tx *gorm.DB, existing *types.Record, row mapping.CanonicalRow) error {
	delta := e.mergeDelta(existing, row)
	if len(delta) == 0 {
		return nil
	}
	delta["last_updated_at"] = e.now()
	return e.records.UpdateFields(ctx, tx, existing.ID, delta)
}

// storedRow canonicalizes number and date fields before they hit the
// store: dates as YYYY-MM-DD so they compare lexicographically, numbers
// as bare digits so they cast cleanly. String fields keep their original
// casing.
func (e *Engine) storedRow(row mapping.CanonicalRow) mapping.CanonicalRow {
	out := make(mapping.CanonicalRow, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, f := range e.schema.Fields {
		if f.Type != schema.TypeNumber && f.Type != schema.TypeDate {
			continue
		}
		if v, ok := out[f.Name]; ok && v != "" {
			out[f.Name] = normalization.Value(f.Type, v)
		}
	}
	return out
}

// mergeDelta computes the non-identity fields the policy would change.
func (e *Engine) mergeDelta(existing *types.Record, row mapping.CanonicalRow) map[string]interface{} {
	delta := make(map[string]interface{})
	for _, f := range e.schema.Fields {
		if f.Identity {
			continue
		}
		incoming := strings.TrimSpace(row[f.Name])
		if incoming == "" {
			continue
		}
		current := existing.Field(f.Name)
		switch e.policy {
		case MergeFillMissing:
			if current == "" {
				delta[f.Name] = incoming
			}
		case MergePreferIncoming:
			if current != incoming {
				delta[f.Name] = incoming
			}
		}
	}
	return delta
}
