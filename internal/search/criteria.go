package search

import (
	"fmt"

	"github.com/dedupehq/dedupe-backend/internal/schema"
)

// Node is one vertex of a criteria tree. A node is either a Group
// (Logic + Criteria) or a Condition (Field + Op + Values); mixing the two
// forms in one node is a validation error.
type Node struct {
	Logic    string  `json:"logic,omitempty"`
	Criteria []*Node `json:"criteria,omitempty"`

	Field  string   `json:"field,omitempty"`
	Op     string   `json:"op,omitempty"`
	Values []string `json:"values,omitempty"`
}

// ValidationError rejects a criteria tree before any query fragment is
// produced. It is synchronous and caller-visible; it is never enqueued.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Bounds on the tree to prevent pathological query generation.
const (
	MaxDepth   = 8
	MaxBreadth = 32
)

// comparators valid per field type. Text matching operators are
// case-insensitive; ordering operators apply to numbers and dates only.
var (
	stringOps = map[string]bool{
		"=": true, "!=": true, "null": true, "!null": true,
		"contains": true, "!contains": true,
		"starts": true, "!starts": true,
		"ends": true, "!ends": true,
	}
	orderedOps = map[string]bool{
		"=": true, "!=": true, "null": true, "!null": true,
		">": true, "<": true, ">=": true, "<=": true,
		"between": true, "!between": true,
	}
)

func opsFor(t schema.FieldType) map[string]bool {
	switch t {
	case schema.TypeNumber, schema.TypeDate:
		return orderedOps
	default:
		return stringOps
	}
}

// expectedValues returns how many comparison values an operator consumes.
func expectedValues(op string) int {
	switch op {
	case "null", "!null":
		return 0
	case "between", "!between":
		return 2
	default:
		return 1
	}
}

func (n *Node) isGroup() bool     { return len(n.Criteria) > 0 || n.Logic != "" }
func (n *Node) isCondition() bool { return n.Field != "" || n.Op != "" }
