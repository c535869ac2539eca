package exec

import (
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// ProjectExec pulls one source row, evaluates Expressions into its own
// row buffer, and replays the source's frequency (spec.md 4.8). Distinct
// elimination is handled by a wrapping DistinctExec (below), kept
// separate so a non-distinct Project never pays for a seen-set.
type ProjectExec struct {
	ctx    functions.EvalContext
	exprs  []expr.Expr
	source Executor

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewProject(ctx functions.EvalContext, expressions []logical.NamedExpression, source Executor) *ProjectExec {
	exprs := make([]expr.Expr, len(expressions))
	for i, ne := range expressions {
		exprs[i] = ne.Expression
	}
	return &ProjectExec{ctx: ctx, exprs: exprs, source: source}
}

func (p *ProjectExec) Advance() error {
	p.ok = false
	row, freq, ok, err := Next(p.source)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	out, err := expr.EvalRow(p.ctx, p.exprs, row)
	if err != nil {
		return errStorage("project", err)
	}
	p.row, p.freq, p.ok = out, freq, true
	return nil
}

func (p *ProjectExec) Get() (types.Row, types.Frequency, bool) {
	if !p.ok {
		return nil, 0, false
	}
	return p.row, p.freq, true
}

func (p *ProjectExec) ColumnCount() int { return len(p.exprs) }

// DistinctExec wraps a source, suppressing rows whose full output row
// (by null-safe equality) has already been seen, whatever that earlier
// row's frequency was. It materializes only the distinct keys seen so far, not the
// whole source.
type DistinctExec struct {
	source Executor
	seen   map[string]bool

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewDistinct(source Executor) *DistinctExec {
	return &DistinctExec{source: source, seen: map[string]bool{}}
}

func (d *DistinctExec) Advance() error {
	d.ok = false
	for {
		row, freq, ok, err := Next(d.source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		key := rowKey(row)
		if d.seen[key] {
			continue
		}
		d.seen[key] = true
		d.row, d.freq, d.ok = row.IntoStatic(), freq, true
		return nil
	}
}

func (d *DistinctExec) Get() (types.Row, types.Frequency, bool) {
	if !d.ok {
		return nil, 0, false
	}
	return d.row, d.freq, true
}

func (d *DistinctExec) ColumnCount() int { return d.source.ColumnCount() }

func rowKey(row types.Row) string {
	var buf []byte
	for _, d := range row {
		// Ascending sortable encoding is injective over the value
		// domain (spec.md 8), so it doubles as a cheap map key here.
		buf = encodeForKey(d, buf)
	}
	return string(buf)
}
