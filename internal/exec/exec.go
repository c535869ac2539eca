// Package exec implements the streaming tuple iterators spec.md 4.8
// describes: a pull-based advance()/get() contract shared by every
// operator, where rows returned by Get are borrowed from the producing
// executor's own buffers and invalidated by its next Advance. Grounded on
// the teacher's internal/apply.Applier ("drain statements, apply each,
// report") as the structural analogue of "drain source rows, apply a
// write, emit none" (TableInsert) and, more generally, on its pattern of
// one small type per pipeline stage.
package exec

import (
	"fmt"

	"incresql/internal/types"
)

// Executor is the pull-based tuple iterator contract of spec.md 4.8.
// Advance positions the executor at its next (row, freq) pair, or at
// exhaustion; Get reports the current pair without advancing. A row
// returned by Get is borrowed and invalidated by the next Advance call on
// this executor or any of its ancestors.
type Executor interface {
	Advance() error
	Get() (types.Row, types.Frequency, bool)
	ColumnCount() int
}

// Next is a convenience wrapping Advance+Get for callers that don't need
// to separate the two steps.
func Next(e Executor) (types.Row, types.Frequency, bool, error) {
	if err := e.Advance(); err != nil {
		return nil, 0, false, err
	}
	row, freq, ok := e.Get()
	return row, freq, ok, nil
}

// Kind enumerates the ExecutionError family from spec.md 7.
type Kind int

const (
	StorageErr Kind = iota
	Killed
)

// ExecutionError reports a runtime failure (spec.md 7): execution errors
// abort the statement, roll back any uncommitted write batch, and
// surface to the connection.
type ExecutionError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Kind == Killed {
		return fmt.Sprintf("exec: %s: killed", e.Op)
	}
	return fmt.Sprintf("exec: %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func errStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Kind: StorageErr, Op: op, Err: err}
}

// ErrKilled reports that a session's kill flag tripped mid-execution
// (spec.md 5, 7).
func ErrKilled(op string) error {
	return &ExecutionError{Kind: Killed, Op: op}
}

// KillChecker reports whether a session has been killed (spec.md 5).
// internal/runtime polls it between the root executor's output rows; no
// executor in this package polls it, so a materializing step (Sort,
// HashGroup, HashJoin's build side) runs to its end before a kill is seen.
type KillChecker interface {
	Killed() bool
}
