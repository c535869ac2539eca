package logical

import "fmt"

// PlannerKind enumerates the PlannerError family from spec.md 7.
type PlannerKind int

const (
	FunctionNotFound PlannerKind = iota
	AmbiguousColumn
	ColumnNotFound
	TypeMismatch
	InvalidValues
	AggregateMisuse
)

func (k PlannerKind) String() string {
	switch k {
	case FunctionNotFound:
		return "function not found"
	case AmbiguousColumn:
		return "ambiguous column"
	case ColumnNotFound:
		return "column not found"
	case TypeMismatch:
		return "type mismatch"
	case InvalidValues:
		return "invalid values"
	case AggregateMisuse:
		return "aggregate misuse"
	default:
		return "unknown planner error"
	}
}

// PlannerError reports a compilation failure from validation (spec.md
// 7): compilation errors abort the statement before any I/O.
type PlannerError struct {
	Kind    PlannerKind
	Message string
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("planner: %s: %s", e.Kind, e.Message)
}

func errPlanner(kind PlannerKind, format string, args ...interface{}) error {
	return &PlannerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
