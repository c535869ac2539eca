package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/session"
	"incresql/internal/types"
)

func intRows(vals ...int32) []types.Row {
	rows := make([]types.Row, len(vals))
	for i, v := range vals {
		rows[i] = types.Row{types.NewInteger(v)}
	}
	return rows
}

func drainAll(t *testing.T, e Executor) ([]types.Row, []types.Frequency) {
	t.Helper()
	var rows []types.Row
	var freqs []types.Frequency
	for {
		row, freq, ok, err := Next(e)
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, row.IntoStatic())
		freqs = append(freqs, freq)
	}
	return rows, freqs
}

// TestSingleExecYieldsOneEmptyRow covers spec.md 4.8: Single yields one
// empty row with freq 1, then none.
func TestSingleExecYieldsOneEmptyRow(t *testing.T) {
	rows, freqs := drainAll(t, NewSingle())
	require.Equal(t, []types.Row{{}}, rows)
	require.Equal(t, []types.Frequency{1}, freqs)
}

func TestValuesExecYieldsEachRow(t *testing.T) {
	rows, freqs := drainAll(t, NewValues(intRows(1, 2, 2), 1))
	require.Equal(t, intRows(1, 2, 2), rows)
	require.Equal(t, []types.Frequency{1, 1, 1}, freqs)
}

// cmpFilter builds a "column0 op literal" predicate over the named
// comparison operator, resolved against a fresh registry the way
// logical.Validate's expression-compile pass would.
func cmpFilter(t *testing.T, op string, literal int32) expr.Expr {
	t.Helper()
	reg := functions.NewRegistry()
	functions.Register(reg)
	def, _, ret, err := reg.Resolve(op, []types.DataType{types.TInteger, types.TInteger})
	require.NoError(t, err)
	args := []expr.Expr{
		&expr.CompiledColumnReference{Offset: 0, Typ: types.TInteger},
		&expr.Constant{Value: types.NewInteger(literal), Typ: types.TInteger},
	}
	return expr.NewCompiledFunctionCall(op, def, args, ret)
}

func TestFilterExecKeepsOnlyTrueRows(t *testing.T) {
	source := NewValues(intRows(1, 2, 3), 1)
	f := NewFilter(session.New("default"), cmpFilter(t, ">", 1), source)
	rows, freqs := drainAll(t, f)
	require.Equal(t, intRows(2, 3), rows)
	require.Equal(t, []types.Frequency{1, 1}, freqs)
}

func TestFilterExecDiscardsNullPredicate(t *testing.T) {
	// A predicate referencing a constant NULL must discard every row
	// (spec.md 4.8: Null and false both discard).
	source := NewValues(intRows(1, 2), 1)
	predicate := &expr.Constant{Value: types.NullDatum, Typ: types.TBoolean}
	f := NewFilter(session.New("default"), predicate, source)
	rows, _ := drainAll(t, f)
	require.Empty(t, rows)
}

func TestLimitExecOffsetAndLimit(t *testing.T) {
	source := NewValues(intRows(1, 2, 3, 4, 5), 1)
	l := NewLimit(1, 2, true, source)
	rows, freqs := drainAll(t, l)
	require.Equal(t, intRows(2, 3), rows)
	require.Equal(t, []types.Frequency{1, 1}, freqs)
}

func TestLimitExecNoLimitJustOffset(t *testing.T) {
	source := NewValues(intRows(1, 2, 3), 1)
	l := NewLimit(2, 0, false, source)
	rows, _ := drainAll(t, l)
	require.Equal(t, intRows(3), rows)
}

func TestLimitExecSplitsStraddlingFrequency(t *testing.T) {
	// A single row with freq=5 straddling an offset of 2 and limit of 2
	// must be clipped to freq=2, not emitted whole or dropped.
	source := &fixedFreqSource{rows: intRows(1), freq: 5}
	l := NewLimit(2, 2, true, source)
	rows, freqs := drainAll(t, l)
	require.Equal(t, intRows(1), rows)
	require.Equal(t, []types.Frequency{2}, freqs)
}

type fixedFreqSource struct {
	rows []types.Row
	freq types.Frequency
	pos  int
	row  types.Row
	ok   bool
}

func (s *fixedFreqSource) Advance() error {
	if s.pos >= len(s.rows) {
		s.ok = false
		return nil
	}
	s.row = s.rows[s.pos]
	s.pos++
	s.ok = true
	return nil
}
func (s *fixedFreqSource) Get() (types.Row, types.Frequency, bool) {
	if !s.ok {
		return nil, 0, false
	}
	return s.row, s.freq, true
}
func (s *fixedFreqSource) ColumnCount() int { return 1 }

func TestUnionAllExecExhaustsInOrder(t *testing.T) {
	u := NewUnionAll([]Executor{
		NewValues(intRows(1, 2), 1),
		NewValues(intRows(3), 1),
	})
	rows, _ := drainAll(t, u)
	require.Equal(t, intRows(1, 2, 3), rows)
}

func TestNegateFreqExecFlipsSign(t *testing.T) {
	n := NewNegateFreq(NewValues(intRows(1), 1))
	_, freqs := drainAll(t, n)
	require.Equal(t, []types.Frequency{-1}, freqs)
}

func TestSortExecOrdersDescendingStable(t *testing.T) {
	source := NewValues(intRows(3, 1, 2), 1)
	sortExprs := []logical.SortExpression{
		{Expression: &expr.CompiledColumnReference{Offset: 0, Typ: types.TInteger}, Order: types.Descending},
	}
	s := NewSort(session.New("default"), sortExprs, source)
	rows, _ := drainAll(t, s)
	require.Equal(t, intRows(3, 2, 1), rows)
}

// TestHashJoinCrossJoinCardinality covers spec.md §8's join cardinality
// property: with no keys and an always-true residual, every left row
// pairs with every right row, so total freq = (sum left freq) * (sum
// right freq).
func TestHashJoinCrossJoinCardinality(t *testing.T) {
	left := NewValues(intRows(1, 2), 1)
	right := NewValues(intRows(10, 20, 30), 1)
	j := NewHashJoin(session.New("default"), left, right, nil, nil, nil, logical.InnerJoin)
	rows, freqs := drainAll(t, j)
	require.Len(t, rows, 6)
	var total types.Frequency
	for _, f := range freqs {
		total += f
	}
	require.EqualValues(t, 6, total)
}

// TestHashJoinLeftOuterPadsUnmatched covers LEFT OUTER JOIN semantics
// (spec.md 4.8): an unmatched left row is emitted once with the right
// side padded Null, at the left row's own frequency.
func TestHashJoinLeftOuterPadsUnmatched(t *testing.T) {
	left := NewValues(intRows(1, 2), 1)
	right := NewValues(intRows(2), 1)
	leftKeys := []expr.Expr{&expr.CompiledColumnReference{Offset: 0, Typ: types.TInteger}}
	rightKeys := []expr.Expr{&expr.CompiledColumnReference{Offset: 0, Typ: types.TInteger}}
	j := NewHashJoin(session.New("default"), left, right, leftKeys, rightKeys, nil, logical.LeftOuterJoin)
	rows, freqs := drainAll(t, j)
	require.Equal(t, []types.Row{
		{types.NewInteger(1), types.NullDatum},
		{types.NewInteger(2), types.NewInteger(2)},
	}, rows)
	require.Equal(t, []types.Frequency{1, 1}, freqs)
}
