package exec

import "incresql/internal/types"

// SingleExec yields one empty row with freq 1, then none (spec.md 4.8).
type SingleExec struct {
	done bool
	cur  bool
}

func NewSingle() *SingleExec { return &SingleExec{} }

func (s *SingleExec) Advance() error {
	if s.done {
		s.cur = false
		return nil
	}
	s.done = true
	s.cur = true
	return nil
}

func (s *SingleExec) Get() (types.Row, types.Frequency, bool) {
	if !s.cur {
		return nil, 0, false
	}
	return types.Row{}, 1, true
}

func (s *SingleExec) ColumnCount() int { return 0 }
