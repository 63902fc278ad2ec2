package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/dedupehq/dedupe-backend/internal/schema"
)

func cond(field, op string, values ...string) *Node {
	return &Node{Field: field, Op: op, Values: values}
}

func group(logic string, children ...*Node) *Node {
	return &Node{Logic: logic, Criteria: children}
}

func mustTranslate(t *testing.T, tree *Node) Query {
	t.Helper()
	q, err := Translate(schema.Default(), tree)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return q
}

func wantValidationError(t *testing.T, tree *Node, fragment string) {
	t.Helper()
	_, err := Translate(schema.Default(), tree)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !strings.Contains(vErr.Msg, fragment) {
		t.Fatalf("error %q does not mention %q", vErr.Msg, fragment)
	}
}

func TestTranslateNilTreeMatchesEverything(t *testing.T) {
	q := mustTranslate(t, nil)
	if q.Where != "" || len(q.Args) != 0 {
		t.Fatalf("nil tree produced %+v", q)
	}
}

func TestTranslateSimpleConditions(t *testing.T) {
	cases := []struct {
		name      string
		tree      *Node
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "string equals",
			tree:      cond("last_name", "=", "Smith"),
			wantWhere: "last_name = ?",
			wantArgs:  []interface{}{"Smith"},
		},
		{
			name:      "contains lowers and wraps",
			tree:      cond("email", "contains", "EX%MPLE"),
			wantWhere: `LOWER(email) LIKE ? ESCAPE '\'`,
			wantArgs:  []interface{}{`%ex\%mple%`},
		},
		{
			name:      "null folds empty string",
			tree:      cond("email", "null"),
			wantWhere: "(email IS NULL OR email = '')",
			wantArgs:  nil,
		},
		{
			name:      "number comparison casts",
			tree:      cond("phone", ">", "100"),
			wantWhere: "CAST(NULLIF(phone, '') AS NUMERIC) > ?",
			wantArgs:  []interface{}{float64(100)},
		},
		{
			name:      "date between normalizes",
			tree:      cond("dob", "between", "01/01/1980", "1989-12-31"),
			wantWhere: "(dob >= ? AND dob <= ?)",
			wantArgs:  []interface{}{"1980-01-01", "1989-12-31"},
		},
		{
			name:      "not between inverts bounds",
			tree:      cond("dob", "!between", "1980-01-01", "1989-12-31"),
			wantWhere: "(dob < ? OR dob > ?)",
			wantArgs:  []interface{}{"1980-01-01", "1989-12-31"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := mustTranslate(t, tc.tree)
			if q.Where != tc.wantWhere {
				t.Fatalf("where = %q, want %q", q.Where, tc.wantWhere)
			}
			if len(q.Args) != len(tc.wantArgs) {
				t.Fatalf("args = %v, want %v", q.Args, tc.wantArgs)
			}
			for i := range q.Args {
				if q.Args[i] != tc.wantArgs[i] {
					t.Fatalf("arg[%d] = %v, want %v", i, q.Args[i], tc.wantArgs[i])
				}
			}
		})
	}
}

func TestTranslateNestedGroups(t *testing.T) {
	tree := group("OR",
		group("AND",
			cond("last_name", "=", "Smith"),
			cond("city", "starts", "Le"),
		),
		cond("email", "!null"),
	)
	q := mustTranslate(t, tree)
	want := `((last_name = ? AND LOWER(city) LIKE ? ESCAPE '\') OR (email IS NOT NULL AND email <> ''))`
	if q.Where != want {
		t.Fatalf("where = %q, want %q", q.Where, want)
	}
	if len(q.Args) != 2 {
		t.Fatalf("args = %v", q.Args)
	}
}

func TestTranslateRejectsInvalidTrees(t *testing.T) {
	wantValidationError(t, cond("no_such_field", "=", "x"), "unknown field")
	wantValidationError(t, cond("last_name", ">", "x"), "not valid")
	wantValidationError(t, cond("phone", "contains", "1"), "not valid")
	wantValidationError(t, cond("phone", "=", "abc"), "not numeric")
	wantValidationError(t, cond("dob", "=", "not-a-date"), "not a date")
	wantValidationError(t, cond("last_name", "between", "a"), "2 value(s)")
	wantValidationError(t, cond("email", "null", "surplus"), "0 value(s)")
	wantValidationError(t, group("XOR", cond("email", "null")), "invalid group logic")
	wantValidationError(t, group("AND"), "no criteria")
	wantValidationError(t, &Node{Logic: "AND", Criteria: []*Node{cond("email", "null")}, Field: "email"}, "both")

	deep := cond("email", "null")
	for i := 0; i < MaxDepth+1; i++ {
		deep = group("AND", deep)
	}
	wantValidationError(t, deep, "deeper")

	wide := make([]*Node, MaxBreadth+1)
	for i := range wide {
		wide[i] = cond("email", "null")
	}
	wantValidationError(t, group("OR", wide...), "wider")
}

func TestSortOrderClause(t *testing.T) {
	sch := schema.Default()

	clause, err := Sort{}.OrderClause(sch)
	if err != nil || clause != "first_seen_at ASC" {
		t.Fatalf("default clause = %q, %v", clause, err)
	}

	clause, err = Sort{Field: "last_name", Direction: "desc"}.OrderClause(sch)
	if err != nil || clause != "last_name DESC, first_seen_at ASC" {
		t.Fatalf("clause = %q, %v", clause, err)
	}

	if _, err := (Sort{Field: "nope"}).OrderClause(sch); err == nil {
		t.Fatalf("unknown sort field accepted")
	}
	if _, err := (Sort{Field: "last_name", Direction: "sideways"}).OrderClause(sch); err == nil {
		t.Fatalf("bad direction accepted")
	}
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize()
	if p.Limit != DefaultPageLimit || p.Offset != 0 {
		t.Fatalf("default page = %+v", p)
	}
	p = Page{Limit: 10_000, Offset: -3}.Normalize()
	if p.Limit != MaxPageLimit || p.Offset != 0 {
		t.Fatalf("clamped page = %+v", p)
	}
}
