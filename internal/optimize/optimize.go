// Package optimize implements the rewrite passes spec.md 4.6 assigns to
// the optimizer stage: predicate pushdown, projection pruning, and
// constant folding over a validated logical.Node tree, grounded on
// original_source/src/planner/src/p2_optimization/predicate_pushdown.rs.
package optimize

import (
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// Optimize runs the optimizer passes over query and returns the
// rewritten tree. It never changes the tree's output fields or row
// semantics, only the operators used to produce them.
func Optimize(query logical.Node, ctx functions.EvalContext, reg *functions.Registry) logical.Node {
	o := &optimizer{reg: reg}
	query = o.pushdownPredicates(query)
	query = foldConstants(query, ctx)
	query = PruneProjections(query, nil)
	return query
}

// optimizer carries the function registry needed to re-build `and`
// calls when predicates are recombined during pushdown.
type optimizer struct {
	reg     *functions.Registry
	andDef  *functions.Definition
}

func (o *optimizer) andDefinition() *functions.Definition {
	if o.andDef == nil {
		def, _, _, err := o.reg.Resolve("and", []types.DataType{types.TBoolean, types.TBoolean})
		if err != nil {
			panic("optimize: \"and\" builtin missing from registry")
		}
		o.andDef = def
	}
	return o.andDef
}

// pushdownPredicates decomposes Filter predicates at conjunction and
// pushes each conjunct toward its source, per spec.md 4.6's table:
// through Project (inlining expressions), Sort/NegateFreq (unchanged),
// UnionAll (to every branch), and Join (partitioned by which side's
// columns a conjunct references). Conjuncts that cannot push further
// are re-attached as a Filter immediately above the operator that
// stopped them.
func (o *optimizer) pushdownPredicates(n logical.Node) logical.Node {
	switch t := n.(type) {
	case *logical.Filter:
		t.Source = o.pushdownPredicates(t.Source)
		conjuncts := splitConjuncts(t.Predicate)
		return o.attachFilter(o.pushInto(t.Source, conjuncts), nil)
	case *logical.Project:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.GroupBy:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.Limit:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.Sort:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.TableAlias:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.TableInsert:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.NegateFreq:
		t.Source = o.pushdownPredicates(t.Source)
	case *logical.UnionAll:
		for i, s := range t.Sources {
			t.Sources[i] = o.pushdownPredicates(s)
		}
	case *logical.Join:
		t.Left = o.pushdownPredicates(t.Left)
		t.Right = o.pushdownPredicates(t.Right)
	}
	return n
}

// splitConjuncts decomposes a Boolean expression tree at its top-level
// `and` calls into its independent conjuncts.
func splitConjuncts(e expr.Expr) []expr.Expr {
	if call, ok := e.(*expr.CompiledFunctionCall); ok && call.Name == "and" && len(call.Args) == 2 {
		return append(splitConjuncts(call.Args[0]), splitConjuncts(call.Args[1])...)
	}
	return []expr.Expr{e}
}

// pushInto attempts to move conjuncts below n, returning the (possibly
// rewritten) subtree with any conjuncts that could not be pushed
// re-attached directly above it.
func (o *optimizer) pushInto(n logical.Node, conjuncts []expr.Expr) logical.Node {
	if len(conjuncts) == 0 {
		return n
	}
	switch t := n.(type) {
	case *logical.Sort:
		t.Source = o.pushInto(t.Source, conjuncts)
		return t
	case *logical.NegateFreq:
		t.Source = o.pushInto(t.Source, conjuncts)
		return t
	case *logical.Project:
		inlined := make([]expr.Expr, len(conjuncts))
		for i, c := range conjuncts {
			inlined[i] = inlineProjectExpr(c, t.Expressions)
		}
		t.Source = o.pushInto(t.Source, inlined)
		return t
	case *logical.UnionAll:
		for i, s := range t.Sources {
			t.Sources[i] = o.pushInto(s, cloneConjuncts(conjuncts))
		}
		return t
	case *logical.Join:
		return o.pushIntoJoin(t, conjuncts)
	default:
		return o.attachFilter(n, conjuncts)
	}
}

// cloneConjuncts returns the same conjunct list; each UnionAll branch
// gets an independent Filter wrapper rather than sharing one slice
// mutation downstream.
func cloneConjuncts(conjuncts []expr.Expr) []expr.Expr {
	out := make([]expr.Expr, len(conjuncts))
	copy(out, conjuncts)
	return out
}

// inlineProjectExpr substitutes a CompiledColumnReference's offset with
// the Project's own expression at that offset, so a predicate
// referencing a Project's output can be rephrased in terms of the
// Project's source.
func inlineProjectExpr(e expr.Expr, projected []logical.NamedExpression) expr.Expr {
	switch t := e.(type) {
	case *expr.CompiledColumnReference:
		if t.Offset >= 0 && t.Offset < len(projected) {
			return projected[t.Offset].Expression
		}
		return t
	case *expr.CompiledFunctionCall:
		args := make([]expr.Expr, len(t.Args))
		for i, a := range t.Args {
			args[i] = inlineProjectExpr(a, projected)
		}
		return expr.NewCompiledFunctionCall(t.Name, t.Def, args, t.Typ)
	default:
		return e
	}
}

// pushIntoJoin partitions conjuncts for an inner join into left-only,
// right-only, and cross-side clauses per spec.md 4.6; left-outer joins
// only push left-filtering predicates left and wrap every other
// conjunct in a Filter directly above the join.
func (o *optimizer) pushIntoJoin(j *logical.Join, conjuncts []expr.Expr) logical.Node {
	leftWidth := len(j.Left.Fields())
	var leftOnly, rightOnly, cross []expr.Expr
	for _, c := range conjuncts {
		maxCol, minCol, ok := columnRange(c)
		switch {
		case !ok:
			cross = append(cross, c)
		case ok && maxCol < leftWidth:
			leftOnly = append(leftOnly, c)
		case ok && minCol >= leftWidth:
			rightOnly = append(rightOnly, shiftColumns(c, -leftWidth))
		default:
			cross = append(cross, c)
		}
	}
	if j.Type == logical.LeftOuterJoin {
		// Only predicates that reference exclusively the left side are
		// safe to push below a left outer join; everything else stays
		// attached to the join as a post-filter, so right-only conjuncts
		// go back to the join's own column offsets.
		for _, c := range rightOnly {
			cross = append(cross, shiftColumns(c, leftWidth))
		}
		rightOnly = nil
		j.Left = o.pushInto(j.Left, leftOnly)
		return o.attachFilter(j, cross)
	}
	j.Left = o.pushInto(j.Left, leftOnly)
	j.Right = o.pushInto(j.Right, rightOnly)
	for _, c := range cross {
		j.On = o.andExprs(j.On, c)
	}
	return j
}

// columnRange reports the minimum and maximum CompiledColumnReference
// offsets an expression touches, and whether every leaf it touches is a
// column reference or constant (false if it touches an aggregate or
// anything opaque to this analysis).
func columnRange(e expr.Expr) (maxCol, minCol int, ok bool) {
	minCol = int(^uint(0) >> 1)
	maxCol = -1
	var walk func(e expr.Expr) bool
	walk = func(e expr.Expr) bool {
		switch t := e.(type) {
		case *expr.Constant:
			return true
		case *expr.CompiledColumnReference:
			if t.Offset > maxCol {
				maxCol = t.Offset
			}
			if t.Offset < minCol {
				minCol = t.Offset
			}
			return true
		case *expr.CompiledFunctionCall:
			for _, a := range t.Args {
				if !walk(a) {
					return false
				}
			}
			return true
		default:
			return false
		}
	}
	if !walk(e) {
		return 0, 0, false
	}
	if maxCol == -1 {
		// constants only: belongs to both sides, treat as left-only (0).
		return 0, 0, true
	}
	return maxCol, minCol, true
}

func shiftColumns(e expr.Expr, delta int) expr.Expr {
	switch t := e.(type) {
	case *expr.CompiledColumnReference:
		return &expr.CompiledColumnReference{Offset: t.Offset + delta, Typ: t.Typ, DisplayName: t.DisplayName}
	case *expr.CompiledFunctionCall:
		args := make([]expr.Expr, len(t.Args))
		for i, a := range t.Args {
			args[i] = shiftColumns(a, delta)
		}
		return expr.NewCompiledFunctionCall(t.Name, t.Def, args, t.Typ)
	default:
		return e
	}
}

func (o *optimizer) andExprs(a, b expr.Expr) expr.Expr {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return expr.NewCompiledFunctionCall("and", o.andDefinition(), []expr.Expr{a, b}, types.TBoolean)
}

// attachFilter wraps n in a Filter over the conjunction of extra
// (re-attaching whatever the pushdown pass could not move further
// down); if extra is empty, n is returned unchanged.
func (o *optimizer) attachFilter(n logical.Node, extra []expr.Expr) logical.Node {
	if len(extra) == 0 {
		return n
	}
	pred := extra[0]
	for _, e := range extra[1:] {
		pred = o.andExprs(pred, e)
	}
	return &logical.Filter{Predicate: pred, Source: n}
}
