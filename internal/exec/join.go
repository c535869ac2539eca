package exec

import (
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// HashJoinExec buffers Right into a hash table keyed by RightKeys, then
// probes it once per Left row via LeftKeys, evaluating every Residual
// conjunct against candidate matches (spec.md 4.7/4.8). Frequencies
// multiply: a left row of freq fl matched against a right row of freq fr
// contributes fl*fr to the joined output. LeftOuterJoin additionally
// emits each unmatched left row once, right side padded with Null, at
// freq fl.
type HashJoinExec struct {
	ctx       functions.EvalContext
	left      Executor
	right     Executor
	leftKeys  []expr.Expr
	rightKeys []expr.Expr
	residual  []expr.Expr
	joinType  logical.JoinType
	rightCols int

	buckets map[string][]rightEntry
	built   bool
	started bool

	leftRow     types.Row
	leftFreq    types.Frequency
	haveLeft    bool
	candidates  []rightEntry
	candIdx     int
	leftMatched bool

	row  types.Row
	freq types.Frequency
	ok   bool
}

type rightEntry struct {
	row  types.Row
	freq types.Frequency
}

func NewHashJoin(ctx functions.EvalContext, left, right Executor, leftKeys, rightKeys, residual []expr.Expr, joinType logical.JoinType) *HashJoinExec {
	return &HashJoinExec{
		ctx: ctx, left: left, right: right,
		leftKeys: leftKeys, rightKeys: rightKeys, residual: residual,
		joinType: joinType, rightCols: right.ColumnCount(),
		buckets: map[string][]rightEntry{},
	}
}

func (h *HashJoinExec) build() error {
	for {
		row, freq, ok, err := Next(h.right)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, err := h.evalKey(h.rightKeys, row)
		if err != nil {
			return err
		}
		k := exprKeyOf(key)
		h.buckets[k] = append(h.buckets[k], rightEntry{row: row.IntoStatic(), freq: freq})
	}
	h.built = true
	return nil
}

func (h *HashJoinExec) evalKey(keys []expr.Expr, row types.Row) (types.Row, error) {
	out := make(types.Row, len(keys))
	for i, e := range keys {
		v, err := expr.EvalAny(h.ctx, e, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashJoinExec) residualOK(row types.Row) (bool, error) {
	for _, r := range h.residual {
		v, err := expr.EvalAny(h.ctx, r, row)
		if err != nil {
			return false, err
		}
		if b, isBool := v.AsBoolean(); !isBool || !b {
			return false, nil
		}
	}
	return true, nil
}

func (h *HashJoinExec) pullLeft() error {
	row, freq, ok, err := Next(h.left)
	if err != nil {
		return err
	}
	if !ok {
		h.haveLeft = false
		return nil
	}
	h.leftRow, h.leftFreq, h.haveLeft = row.IntoStatic(), freq, true
	key, err := h.evalKey(h.leftKeys, h.leftRow)
	if err != nil {
		return err
	}
	h.candidates = h.buckets[exprKeyOf(key)]
	h.candIdx = 0
	h.leftMatched = false
	return nil
}

func (h *HashJoinExec) Advance() error {
	h.ok = false
	if !h.built {
		if err := h.build(); err != nil {
			return errStorage("hash_join", err)
		}
	}
	if !h.started {
		h.started = true
		if err := h.pullLeft(); err != nil {
			return errStorage("hash_join", err)
		}
	}

	for h.haveLeft {
		for h.candIdx < len(h.candidates) {
			cand := h.candidates[h.candIdx]
			h.candIdx++
			combined := append(append(types.Row{}, h.leftRow...), cand.row...)
			pass, err := h.residualOK(combined)
			if err != nil {
				return errStorage("hash_join", err)
			}
			if !pass {
				continue
			}
			h.leftMatched = true
			h.row, h.freq, h.ok = combined, h.leftFreq*cand.freq, true
			return nil
		}
		// Exhausted this left row's candidates.
		if h.joinType == logical.LeftOuterJoin && !h.leftMatched {
			h.leftMatched = true // emit the outer row exactly once
			nulls := make(types.Row, h.rightCols)
			for i := range nulls {
				nulls[i] = types.NullDatum
			}
			h.row = append(append(types.Row{}, h.leftRow...), nulls...)
			h.freq, h.ok = h.leftFreq, true
			if err := h.pullLeft(); err != nil {
				return errStorage("hash_join", err)
			}
			return nil
		}
		if err := h.pullLeft(); err != nil {
			return errStorage("hash_join", err)
		}
	}
	return nil
}

func (h *HashJoinExec) Get() (types.Row, types.Frequency, bool) {
	if !h.ok {
		return nil, 0, false
	}
	return h.row, h.freq, true
}

func (h *HashJoinExec) ColumnCount() int { return h.left.ColumnCount() + h.rightCols }
