package exec

import (
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/types"
)

// FilterExec pulls until Predicate evaluates to exactly Boolean(true);
// Null and false both discard the row (spec.md 4.8, SQL three-valued
// logic). It preserves the source's frequency on rows that pass.
type FilterExec struct {
	ctx       functions.EvalContext
	predicate expr.Expr
	source    Executor

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewFilter(ctx functions.EvalContext, predicate expr.Expr, source Executor) *FilterExec {
	return &FilterExec{ctx: ctx, predicate: predicate, source: source}
}

func (f *FilterExec) Advance() error {
	f.ok = false
	for {
		row, freq, ok, err := Next(f.source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		v, err := expr.EvalAny(f.ctx, f.predicate, row)
		if err != nil {
			return errStorage("filter", err)
		}
		b, isBool := v.AsBoolean()
		if !isBool || !b {
			continue
		}
		f.row, f.freq, f.ok = row, freq, true
		return nil
	}
}

func (f *FilterExec) Get() (types.Row, types.Frequency, bool) {
	if !f.ok {
		return nil, 0, false
	}
	return f.row, f.freq, true
}

func (f *FilterExec) ColumnCount() int { return f.source.ColumnCount() }
