package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dedupehq/dedupe-backend/internal/normalization"
	"github.com/dedupehq/dedupe-backend/internal/schema"
)

// Query is a parameterized filter fragment. An empty Where matches every
// record. The same fragment backs the page query, the count query and the
// bulk-delete predicate, so the three can never drift apart.
type Query struct {
	Where string
	Args  []interface{}
}

// Page is offset+limit pagination. Search and count always run under the
// same criteria, so paging through the full result set sums to the count.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 1000
)

// Normalize clamps the page spec into bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Sort orders a result page by one schema field.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// OrderClause validates the sort against the schema and renders it, always
// appending the first-seen timestamp as tiebreaker so pages are stable.
func (s Sort) OrderClause(sch *schema.Schema) (string, error) {
	if s.Field == "" {
		return "first_seen_at ASC", nil
	}
	if _, ok := sch.FieldByName(s.Field); !ok {
		return "", validationf("unknown sort field %q", s.Field)
	}
	dir := "ASC"
	switch strings.ToLower(s.Direction) {
	case "", "asc":
	case "desc":
		dir = "DESC"
	default:
		return "", validationf("invalid sort direction %q", s.Direction)
	}
	return s.Field + " " + dir + ", first_seen_at ASC", nil
}

var dateValue = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Translate validates the criteria tree against the schema allow-list and
// lowers it to one parameterized fragment. Validation failures produce no
// partial query.
func Translate(sch *schema.Schema, tree *Node) (Query, error) {
	if tree == nil {
		return Query{}, nil
	}
	where, args, err := lower(sch, tree, 1)
	if err != nil {
		return Query{}, err
	}
	return Query{Where: where, Args: args}, nil
}

func lower(sch *schema.Schema, n *Node, depth int) (string, []interface{}, error) {
	if depth > MaxDepth {
		return "", nil, validationf("criteria tree deeper than %d levels", MaxDepth)
	}
	if n.isGroup() && n.isCondition() {
		return "", nil, validationf("criteria node is both a group and a condition")
	}
	if n.isGroup() {
		return lowerGroup(sch, n, depth)
	}
	return lowerCondition(sch, n)
}

func lowerGroup(sch *schema.Schema, n *Node, depth int) (string, []interface{}, error) {
	var joiner string
	switch strings.ToUpper(n.Logic) {
	case "AND":
		joiner = " AND "
	case "OR":
		joiner = " OR "
	default:
		return "", nil, validationf("invalid group logic %q", n.Logic)
	}
	if len(n.Criteria) == 0 {
		return "", nil, validationf("group has no criteria")
	}
	if len(n.Criteria) > MaxBreadth {
		return "", nil, validationf("group wider than %d criteria", MaxBreadth)
	}

	parts := make([]string, 0, len(n.Criteria))
	var args []interface{}
	for _, child := range n.Criteria {
		frag, childArgs, err := lower(sch, child, depth+1)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, frag)
		args = append(args, childArgs...)
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

func lowerCondition(sch *schema.Schema, n *Node) (string, []interface{}, error) {
	field, ok := sch.FieldByName(n.Field)
	if !ok {
		return "", nil, validationf("unknown field %q", n.Field)
	}
	if !opsFor(field.Type)[n.Op] {
		return "", nil, validationf("comparator %q not valid for %s field %q", n.Op, field.Type, n.Field)
	}
	if want := expectedValues(n.Op); len(n.Values) != want {
		return "", nil, validationf("comparator %q on %q wants %d value(s), got %d", n.Op, n.Field, want, len(n.Values))
	}

	col := field.Name
	switch n.Op {
	case "null":
		return "(" + col + " IS NULL OR " + col + " = '')", nil, nil
	case "!null":
		return "(" + col + " IS NOT NULL AND " + col + " <> '')", nil, nil
	}

	switch field.Type {
	case schema.TypeNumber:
		return lowerNumber(col, n)
	case schema.TypeDate:
		return lowerDate(col, n)
	default:
		return lowerString(col, n)
	}
}

func lowerString(col string, n *Node) (string, []interface{}, error) {
	v := n.Values[0]
	switch n.Op {
	case "=":
		return col + " = ?", []interface{}{v}, nil
	case "!=":
		return col + " <> ?", []interface{}{v}, nil
	case "contains":
		return "LOWER(" + col + ") LIKE ? ESCAPE '\\'", []interface{}{"%" + likePattern(v) + "%"}, nil
	case "!contains":
		return "LOWER(" + col + ") NOT LIKE ? ESCAPE '\\'", []interface{}{"%" + likePattern(v) + "%"}, nil
	case "starts":
		return "LOWER(" + col + ") LIKE ? ESCAPE '\\'", []interface{}{likePattern(v) + "%"}, nil
	case "!starts":
		return "LOWER(" + col + ") NOT LIKE ? ESCAPE '\\'", []interface{}{likePattern(v) + "%"}, nil
	case "ends":
		return "LOWER(" + col + ") LIKE ? ESCAPE '\\'", []interface{}{"%" + likePattern(v)}, nil
	case "!ends":
		return "LOWER(" + col + ") NOT LIKE ? ESCAPE '\\'", []interface{}{"%" + likePattern(v)}, nil
	}
	return "", nil, validationf("comparator %q not valid for string field", n.Op)
}

func lowerNumber(col string, n *Node) (string, []interface{}, error) {
	args := make([]interface{}, 0, len(n.Values))
	for _, v := range n.Values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return "", nil, validationf("value %q is not numeric", v)
		}
		args = append(args, f)
	}
	// NULLIF keeps empty strings from casting to 0.
	expr := "CAST(NULLIF(" + col + ", '') AS NUMERIC)"
	return lowerOrdered(expr, n.Op, args)
}

func lowerDate(col string, n *Node) (string, []interface{}, error) {
	args := make([]interface{}, 0, len(n.Values))
	for _, v := range n.Values {
		canon := normalization.Value(schema.TypeDate, v)
		if !dateValue.MatchString(canon) {
			return "", nil, validationf("value %q is not a date", v)
		}
		args = append(args, canon)
	}
	// Dates are stored as YYYY-MM-DD strings, so ordering is lexicographic.
	return lowerOrdered(col, n.Op, args)
}

func lowerOrdered(expr, op string, args []interface{}) (string, []interface{}, error) {
	switch op {
	case "=":
		return expr + " = ?", args, nil
	case "!=":
		return expr + " <> ?", args, nil
	case ">", "<", ">=", "<=":
		return expr + " " + op + " ?", args, nil
	case "between":
		return "(" + expr + " >= ? AND " + expr + " <= ?)", args, nil
	case "!between":
		return "(" + expr + " < ? OR " + expr + " > ?)", args, nil
	}
	return "", nil, validationf("comparator %q not valid here", op)
}

// likePattern lowercases a user value and escapes LIKE wildcards so values
// are always literals.
func likePattern(v string) string {
	v = strings.ToLower(v)
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "%", `\%`)
	v = strings.ReplaceAll(v, "_", `\_`)
	return v
}
