package exec

import (
	"fmt"

	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// groupAggs holds one running accumulator per aggregate expression in a
// group, alongside a reusable argument-evaluation buffer per aggregate
// (spec.md 9: "prefer a reusable per-executor scratch slab rather than
// per-node allocation").
type groupAggs struct {
	aggregates []*expr.CompiledAggregate
	states     []functions.AggregateState
	argBufs    [][]types.Datum
}

func newGroupAggs(aggregates []*expr.CompiledAggregate) *groupAggs {
	g := &groupAggs{aggregates: aggregates, states: make([]functions.AggregateState, len(aggregates)), argBufs: make([][]types.Datum, len(aggregates))}
	for i, a := range aggregates {
		g.states[i] = a.Def.Aggregate.Initialize()
		g.argBufs[i] = make([]types.Datum, len(a.Args))
	}
	return g
}

// apply incorporates one source row, freq times (|freq| Retract calls if
// freq is negative and the aggregate supports retraction).
func (g *groupAggs) apply(ctx functions.EvalContext, row types.Row, freq types.Frequency) error {
	for i, a := range g.aggregates {
		if err := a.EvalArgs(ctx, row, g.argBufs[i]); err != nil {
			return err
		}
		def := a.Def.Aggregate
		if freq >= 0 {
			for n := types.Frequency(0); n < freq; n++ {
				g.states[i] = def.Apply(g.states[i], g.argBufs[i])
			}
			continue
		}
		if !def.SupportsRetract {
			return fmt.Errorf("exec: aggregate %q does not support retraction", a.Name)
		}
		for n := types.Frequency(0); n < -freq; n++ {
			g.states[i] = def.Retract(g.states[i], g.argBufs[i])
		}
	}
	return nil
}

func (g *groupAggs) finalize() types.Row {
	out := make(types.Row, len(g.aggregates))
	for i, a := range g.aggregates {
		out[i] = a.Def.Aggregate.Finalize(g.states[i], a.Typ)
	}
	return out
}

// SortedGroupExec streams a source known to be sorted by its grouping
// key, maintaining one aggregate state and emitting on key change
// (spec.md 4.8). With no key expressions it emits exactly one row even
// over an empty source, per SQL's global-aggregate rule.
type SortedGroupExec struct {
	ctx            functions.EvalContext
	keyExpressions []expr.Expr
	aggregates     []*expr.CompiledAggregate
	source         Executor

	pendingRow  types.Row
	pendingFreq types.Frequency
	havePending bool
	started     bool
	globalDone  bool

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewSortedGroup(ctx functions.EvalContext, keyExpressions []expr.Expr, aggregates []*expr.CompiledAggregate, source Executor) *SortedGroupExec {
	return &SortedGroupExec{ctx: ctx, keyExpressions: keyExpressions, aggregates: aggregates, source: source}
}

func (s *SortedGroupExec) pull() error {
	row, freq, ok, err := Next(s.source)
	if err != nil {
		return err
	}
	if !ok {
		s.havePending = false
		return nil
	}
	s.pendingRow, s.pendingFreq, s.havePending = row.IntoStatic(), freq, true
	return nil
}

func (s *SortedGroupExec) keyOf(row types.Row) (types.Row, error) {
	key := make(types.Row, len(s.keyExpressions))
	for i, e := range s.keyExpressions {
		v, err := expr.EvalAny(s.ctx, e, row)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

func (s *SortedGroupExec) Advance() error {
	s.ok = false
	if !s.started {
		s.started = true
		if err := s.pull(); err != nil {
			return errStorage("sorted_group", err)
		}
	}

	if len(s.keyExpressions) == 0 {
		if s.globalDone {
			return nil
		}
		s.globalDone = true
		agg := newGroupAggs(s.aggregates)
		for s.havePending {
			if err := agg.apply(s.ctx, s.pendingRow, s.pendingFreq); err != nil {
				return errStorage("sorted_group", err)
			}
			if err := s.pull(); err != nil {
				return errStorage("sorted_group", err)
			}
		}
		s.row, s.freq, s.ok = agg.finalize(), 1, true
		return nil
	}

	if !s.havePending {
		return nil
	}
	key, err := s.keyOf(s.pendingRow)
	if err != nil {
		return errStorage("sorted_group", err)
	}
	agg := newGroupAggs(s.aggregates)
	for s.havePending {
		rowKey, err := s.keyOf(s.pendingRow)
		if err != nil {
			return errStorage("sorted_group", err)
		}
		if !rowsEqual(rowKey, key) {
			break
		}
		if err := agg.apply(s.ctx, s.pendingRow, s.pendingFreq); err != nil {
			return errStorage("sorted_group", err)
		}
		if err := s.pull(); err != nil {
			return errStorage("sorted_group", err)
		}
	}
	s.row = append(append(types.Row{}, key...), agg.finalize()...)
	s.freq, s.ok = 1, true
	return nil
}

func rowsEqual(a, b types.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (s *SortedGroupExec) Get() (types.Row, types.Frequency, bool) {
	if !s.ok {
		return nil, 0, false
	}
	return s.row, s.freq, true
}

func (s *SortedGroupExec) ColumnCount() int { return len(s.keyExpressions) + len(s.aggregates) }

// HashGroupExec builds a hash table keyed by KeyExpressions, updating
// aggregate state in place as the source is drained, then emits every
// group once the source is exhausted (spec.md 4.8).
type HashGroupExec struct {
	ctx            functions.EvalContext
	keyExpressions []expr.Expr
	aggregates     []*expr.CompiledAggregate
	source         Executor

	groups   map[string]*groupAggs
	keys     map[string]types.Row
	order    []string
	pos      int
	built    bool
}

func NewHashGroup(ctx functions.EvalContext, keyExpressions []expr.Expr, aggregates []*expr.CompiledAggregate, source Executor) *HashGroupExec {
	return &HashGroupExec{
		ctx: ctx, keyExpressions: keyExpressions, aggregates: aggregates, source: source,
		groups: map[string]*groupAggs{}, keys: map[string]types.Row{}, pos: -1,
	}
}

func (h *HashGroupExec) build() error {
	for {
		row, freq, ok, err := Next(h.source)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := make(types.Row, len(h.keyExpressions))
		for i, e := range h.keyExpressions {
			v, err := expr.EvalAny(h.ctx, e, row)
			if err != nil {
				return err
			}
			key[i] = v.IntoStatic()
		}
		k := exprKeyOf(key)
		agg, ok := h.groups[k]
		if !ok {
			agg = newGroupAggs(h.aggregates)
			h.groups[k] = agg
			h.keys[k] = key
			h.order = append(h.order, k)
		}
		if err := agg.apply(h.ctx, row, freq); err != nil {
			return err
		}
	}
	h.built = true
	return nil
}

func (h *HashGroupExec) Advance() error {
	if !h.built {
		if err := h.build(); err != nil {
			return errStorage("hash_group", err)
		}
	}
	h.pos++
	return nil
}

func (h *HashGroupExec) Get() (types.Row, types.Frequency, bool) {
	if h.pos < 0 || h.pos >= len(h.order) {
		return nil, 0, false
	}
	k := h.order[h.pos]
	row := append(append(types.Row{}, h.keys[k]...), h.groups[k].finalize()...)
	return row, 1, true
}

func (h *HashGroupExec) ColumnCount() int { return len(h.keyExpressions) + len(h.aggregates) }

// NamedExpressionsOf is a small adapter so callers building executors
// directly from a logical.GroupBy (e.g. tests) can extract plain
// expr.Expr slices without depending on internal/physical.
func NamedExpressionsOf(exprs []logical.NamedExpression) []expr.Expr {
	out := make([]expr.Expr, len(exprs))
	for i, ne := range exprs {
		out[i] = ne.Expression
	}
	return out
}
