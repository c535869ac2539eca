package optimize

import (
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/logical"
)

// foldConstants pre-evaluates scalar function calls whose arguments are
// all already Constant (spec.md 4.6: "constant folding"), replacing them
// in place with a Constant node carrying the folded value. Aggregates and
// anything that evaluates against a row are left untouched.
func foldConstants(n logical.Node, ctx functions.EvalContext) logical.Node {
	switch t := n.(type) {
	case *logical.Project:
		for i := range t.Expressions {
			t.Expressions[i].Expression = foldExpr(t.Expressions[i].Expression, ctx)
		}
	case *logical.GroupBy:
		for i := range t.KeyExpressions {
			t.KeyExpressions[i].Expression = foldExpr(t.KeyExpressions[i].Expression, ctx)
		}
		for i := range t.AggExpressions {
			t.AggExpressions[i].Expression = foldExpr(t.AggExpressions[i].Expression, ctx)
		}
	case *logical.Filter:
		t.Predicate = foldExpr(t.Predicate, ctx)
	case *logical.Sort:
		for i := range t.SortExpressions {
			t.SortExpressions[i].Expression = foldExpr(t.SortExpressions[i].Expression, ctx)
		}
	case *logical.Join:
		t.On = foldExpr(t.On, ctx)
	}
	for _, c := range n.Children() {
		foldConstants(c, ctx)
	}
	return n
}

// foldExpr recursively folds e's children first, then attempts to
// evaluate e itself if it is a CompiledFunctionCall over all-Constant
// arguments. A folding failure (e.g. an evaluation error) leaves e
// unchanged rather than aborting optimization -- the unfolded expression
// still evaluates correctly at execution time, just once per row instead
// of once at plan time.
func foldExpr(e expr.Expr, ctx functions.EvalContext) expr.Expr {
	call, ok := e.(*expr.CompiledFunctionCall)
	if !ok {
		return e
	}
	allConst := true
	for i, a := range call.Args {
		folded := foldExpr(a, ctx)
		call.Args[i] = folded
		if _, isConst := folded.(*expr.Constant); !isConst {
			allConst = false
		}
	}
	if !allConst || len(call.Args) == 0 {
		return call
	}
	v, err := expr.EvalAny(ctx, call, nil)
	if err != nil {
		return call
	}
	return &expr.Constant{Value: v, Typ: call.Typ}
}
