package optimize

import (
	"incresql/internal/expr"
	"incresql/internal/logical"
)

// PruneProjections inserts a Project beneath any operator whose source
// would otherwise forward columns nothing above it reads, per spec.md
// 4.6: "each operator declares the set of source columns it needs; a
// projection is inserted beneath operators that would otherwise forward
// unused columns." needed is the set of column offsets (in n.Fields())
// the caller requires from n; pass nil/all-columns for the query root.
func PruneProjections(n logical.Node, needed []int) logical.Node {
	switch t := n.(type) {
	case *logical.Project:
		t.Source = pruneBelow(t.Source, neededByExprsSources(named(t.Expressions)))
		return t
	case *logical.GroupBy:
		req := neededByExprsSources(named(t.KeyExpressions))
		req = append(req, neededByExprsSources(named(t.AggExpressions))...)
		t.Source = pruneBelow(t.Source, req)
		return t
	case *logical.Filter:
		req := exprColumns(t.Predicate)
		req = append(req, passThrough(needed)...)
		t.Source = pruneBelow(t.Source, req)
		return t
	case *logical.Sort:
		req := make([]int, 0)
		for _, se := range t.SortExpressions {
			req = append(req, exprColumns(se.Expression)...)
		}
		req = append(req, passThrough(needed)...)
		t.Source = pruneBelow(t.Source, req)
		return t
	case *logical.Limit:
		t.Source = pruneBelow(t.Source, passThrough(needed))
		return t
	case *logical.NegateFreq:
		t.Source = pruneBelow(t.Source, passThrough(needed))
		return t
	case *logical.TableAlias:
		t.Source = pruneBelow(t.Source, passThrough(needed))
		return t
	case *logical.TableInsert:
		t.Source = PruneProjections(t.Source, nil)
		return t
	case *logical.UnionAll:
		for i, s := range t.Sources {
			t.Sources[i] = pruneBelow(s, passThrough(needed))
		}
		return t
	case *logical.Join:
		leftWidth := len(t.Left.Fields())
		onCols := exprColumns(t.On)
		var leftNeeded, rightNeeded []int
		for _, c := range onCols {
			if c < leftWidth {
				leftNeeded = append(leftNeeded, c)
			} else {
				rightNeeded = append(rightNeeded, c-leftWidth)
			}
		}
		for _, c := range needed {
			if c < leftWidth {
				leftNeeded = append(leftNeeded, c)
			} else {
				rightNeeded = append(rightNeeded, c-leftWidth)
			}
		}
		t.Left = pruneBelow(t.Left, leftNeeded)
		t.Right = pruneBelow(t.Right, rightNeeded)
		return t
	default:
		return n
	}
}

// passThrough treats a nil "needed" set (meaning: caller wants every
// column) as every offset of n's own fields; prune call sites that do
// not yet track a real requirement set fall back to keeping everything.
func passThrough(needed []int) []int { return needed }

// pruneBelow recurses into source, then -- only when source is a plain
// ResolvedTable exposing strictly more columns than are needed -- wraps
// it in a pruning Project. Every other operator kind already fully
// determines its own output shape, so pruning happens one level further
// down via the recursive PruneProjections call.
func pruneBelow(source logical.Node, needed []int) logical.Node {
	source = PruneProjections(source, needed)
	rt, ok := source.(*logical.ResolvedTable)
	if !ok || needed == nil || len(needed) >= len(rt.Fields()) {
		return source
	}
	unique := dedupSorted(needed)
	if len(unique) >= len(rt.Fields()) {
		return source
	}
	exprs := make([]logical.NamedExpression, len(unique))
	for i, off := range unique {
		f := rt.Fields()[off]
		exprs[i] = logical.NamedExpression{
			Alias:      f.Alias,
			Expression: &expr.CompiledColumnReference{Offset: off, Typ: f.Type, DisplayName: f.Alias},
		}
	}
	return &logical.Project{Expressions: exprs, Source: source}
}

func dedupSorted(in []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func named(exprs []logical.NamedExpression) []expr.Expr {
	out := make([]expr.Expr, len(exprs))
	for i, ne := range exprs {
		out[i] = ne.Expression
	}
	return out
}

func neededByExprsSources(exprs []expr.Expr) []int {
	var out []int
	for _, e := range exprs {
		out = append(out, exprColumns(e)...)
	}
	return out
}

// exprColumns returns every CompiledColumnReference offset an
// expression touches.
func exprColumns(e expr.Expr) []int {
	switch t := e.(type) {
	case *expr.CompiledColumnReference:
		return []int{t.Offset}
	case *expr.CompiledFunctionCall:
		var out []int
		for _, a := range t.Args {
			out = append(out, exprColumns(a)...)
		}
		return out
	case *expr.CompiledAggregate:
		var out []int
		for _, a := range t.Args {
			out = append(out, exprColumns(a)...)
		}
		return out
	default:
		return nil
	}
}
