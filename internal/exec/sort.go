package exec

import (
	"sort"

	"incresql/internal/codec"
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// SortExec materializes its source, sorts by the encoded key of its sort
// expressions (ascending/descending honored via the sortable codec), then
// streams the result (spec.md 4.8). The sort is stable, so rows tying on
// every sort key keep their source order.
type SortExec struct {
	ctx    functions.EvalContext
	exprs  []logical.SortExpression
	source Executor

	rows    []types.Row
	freqs   []types.Frequency
	keys    [][]byte
	order   []int
	pos     int
	built   bool
	numCols int
}

func NewSort(ctx functions.EvalContext, exprs []logical.SortExpression, source Executor) *SortExec {
	return &SortExec{ctx: ctx, exprs: exprs, source: source, pos: -1, numCols: source.ColumnCount()}
}

func (s *SortExec) materialize() error {
	for {
		row, freq, ok, err := Next(s.source)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		static := row.IntoStatic()
		key, err := s.sortKey(static)
		if err != nil {
			return err
		}
		s.rows = append(s.rows, static)
		s.freqs = append(s.freqs, freq)
		s.keys = append(s.keys, key)
	}
	s.order = make([]int, len(s.rows))
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		ai, bi := s.order[a], s.order[b]
		c := compareBytes(s.keys[ai], s.keys[bi])
		return c < 0
	})
	s.built = true
	return nil
}

func (s *SortExec) sortKey(row types.Row) ([]byte, error) {
	var buf []byte
	for _, se := range s.exprs {
		v, err := expr.EvalAny(s.ctx, se.Expression, row)
		if err != nil {
			return nil, errStorage("sort", err)
		}
		buf = codec.Encode(v, se.Order, buf)
	}
	return buf, nil
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func (s *SortExec) Advance() error {
	if !s.built {
		if err := s.materialize(); err != nil {
			return err
		}
	}
	s.pos++
	return nil
}

func (s *SortExec) Get() (types.Row, types.Frequency, bool) {
	if s.pos < 0 || s.pos >= len(s.order) {
		return nil, 0, false
	}
	idx := s.order[s.pos]
	return s.rows[idx], s.freqs[idx], true
}

func (s *SortExec) ColumnCount() int { return s.numCols }
