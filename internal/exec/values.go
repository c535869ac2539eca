package exec

import "incresql/internal/types"

// ValuesExec yields each row of a literal VALUES list with freq 1
// (spec.md 4.8).
type ValuesExec struct {
	rows []types.Row
	pos  int
	cols int
}

func NewValues(rows []types.Row, columnCount int) *ValuesExec {
	return &ValuesExec{rows: rows, pos: -1, cols: columnCount}
}

func (v *ValuesExec) Advance() error {
	v.pos++
	return nil
}

func (v *ValuesExec) Get() (types.Row, types.Frequency, bool) {
	if v.pos < 0 || v.pos >= len(v.rows) {
		return nil, 0, false
	}
	return v.rows[v.pos], 1, true
}

func (v *ValuesExec) ColumnCount() int { return v.cols }
