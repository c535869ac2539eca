package exec

import "incresql/internal/types"

// UnionAllExec exhausts its Sources in declared order (spec.md 4.8).
type UnionAllExec struct {
	sources []Executor
	idx     int

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewUnionAll(sources []Executor) *UnionAllExec {
	return &UnionAllExec{sources: sources}
}

func (u *UnionAllExec) Advance() error {
	u.ok = false
	for u.idx < len(u.sources) {
		row, freq, ok, err := Next(u.sources[u.idx])
		if err != nil {
			return err
		}
		if ok {
			u.row, u.freq, u.ok = row, freq, true
			return nil
		}
		u.idx++
	}
	return nil
}

func (u *UnionAllExec) Get() (types.Row, types.Frequency, bool) {
	if !u.ok {
		return nil, 0, false
	}
	return u.row, u.freq, true
}

func (u *UnionAllExec) ColumnCount() int {
	if len(u.sources) == 0 {
		return 0
	}
	return u.sources[0].ColumnCount()
}
