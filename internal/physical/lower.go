package physical

import (
	"incresql/internal/expr"
	"incresql/internal/logical"
	"incresql/internal/storage"
)

// Lower converts an optimized logical.Node tree into a physical.Node tree,
// one operator at a time (spec.md 4.7). It performs no further semantic
// rewriting -- logical.Validate and internal/optimize have already fixed
// every type and resolved every name.
func Lower(n logical.Node) Node {
	switch t := n.(type) {
	case logical.Single:
		return Single{}
	case *logical.Values:
		return &Values{Data: t.Data, Columns: t.Columns}
	case *logical.Project:
		return &Project{Distinct: t.Distinct, Expressions: t.Expressions, Source: Lower(t.Source)}
	case *logical.GroupBy:
		return lowerGroupBy(t)
	case *logical.Filter:
		return &Filter{Predicate: t.Predicate, Source: Lower(t.Source)}
	case *logical.Limit:
		return &Limit{Offset: t.Offset, Limit: t.Limit, HasLimit: t.HasLimit, Source: Lower(t.Source)}
	case *logical.Sort:
		return &Sort{SortExpressions: t.SortExpressions, Source: Lower(t.Source)}
	case *logical.UnionAll:
		sources := make([]Node, len(t.Sources))
		for i, s := range t.Sources {
			sources[i] = Lower(s)
		}
		return &UnionAll{Sources: sources}
	case *logical.ResolvedTable:
		return &TableScan{Table: t.Table, Columns: t.Columns, Timestamp: storage.TimestampMax}
	case *logical.TableAlias:
		// TableAlias only re-qualifies field names for resolution
		// purposes; physical execution has no notion of a qualifier.
		return Lower(t.Source)
	case *logical.TableInsert:
		return &TableInsert{Table: t.Table, Source: Lower(t.Source)}
	case *logical.NegateFreq:
		return &NegateFreq{Source: Lower(t.Source)}
	case *logical.FileScan:
		return &FileScan{Directory: t.Directory, SerdeOptions: t.SerdeOptions}
	case *logical.Join:
		return lowerJoin(t)
	default:
		panic("physical: unhandled logical node type")
	}
}

// lowerGroupBy implements spec.md 4.7: a key-less GroupBy (a bare global
// aggregate, e.g. `SELECT count(*) FROM t`) becomes SortedGroup(key_len=0)
// directly, since there is no key to hash or sort by. A grouped GroupBy
// becomes a HashGroup keyed by its evaluated KeyExpressions; both operate
// directly on the source's rows (the expressions are already compiled
// against the source's fields), so no intervening Project is needed.
func lowerGroupBy(g *logical.GroupBy) Node {
	keyExpressions := make([]expr.Expr, len(g.KeyExpressions))
	for i, ne := range g.KeyExpressions {
		keyExpressions[i] = ne.Expression
	}
	aggregates := make([]*expr.CompiledAggregate, len(g.AggExpressions))
	for i, ne := range g.AggExpressions {
		agg, ok := ne.Expression.(*expr.CompiledAggregate)
		if !ok {
			panic("physical: GroupBy aggregate expression is not a compiled aggregate")
		}
		aggregates[i] = agg
	}
	fields := g.Fields()
	source := Lower(g.Source)

	if len(g.KeyExpressions) == 0 {
		return &SortedGroup{KeyLen: 0, Aggregates: aggregates, Fields_: fields, Source: source}
	}
	return &HashGroup{
		KeyLen:         len(g.KeyExpressions),
		KeyExpressions: keyExpressions,
		Aggregates:     aggregates,
		Fields_:        fields,
		Source:         source,
	}
}

// lowerJoin implements spec.md 4.7's HashJoin lowering: decompose the ON
// clause into its top-level `=` conjuncts, partition those whose two
// sides are plain column references (one on each side) into the hash
// key, and leave the rest as a residual predicate evaluated per probe.
func lowerJoin(j *logical.Join) Node {
	leftWidth := len(j.Left.Fields())
	conjuncts := splitAnd(j.On)

	var leftKeys, rightKeys []expr.Expr
	var residuals []expr.Expr
	for _, c := range conjuncts {
		lcol, rcol, ok := equiJoinSides(c, leftWidth)
		if ok {
			leftKeys = append(leftKeys, lcol)
			// rcol's Offset is in the combined left||right field space;
			// HashJoinExec evaluates RightKeys against bare right-side
			// rows (width = rightWidth), so rebase it to a right-local
			// offset.
			rightKeys = append(rightKeys, rebase(rcol, leftWidth))
			continue
		}
		residuals = append(residuals, c)
	}

	// HashJoin probes a hash table keyed by RightKeys (evaluated per right
	// row) against LeftKeys (evaluated per left row) -- the join key is
	// computed on demand from the equi-join expressions rather than
	// assumed to sit at a fixed physical column offset.
	return &HashJoin{
		Left:      Lower(j.Left),
		Right:     Lower(j.Right),
		KeyLen:    len(leftKeys),
		LeftKeys:  leftKeys,
		RightKeys: rightKeys,
		Residual:  residuals,
		Type:      j.Type,
	}
}

// rebase returns a copy of a right-side CompiledColumnReference with its
// offset shifted from combined left||right field space down to a
// right-only row's local offset.
func rebase(e expr.Expr, leftWidth int) expr.Expr {
	col := e.(*expr.CompiledColumnReference)
	return &expr.CompiledColumnReference{Offset: col.Offset - leftWidth, Typ: col.Typ, DisplayName: col.DisplayName}
}

func splitAnd(e expr.Expr) []expr.Expr {
	if call, ok := e.(*expr.CompiledFunctionCall); ok && call.Name == "and" && len(call.Args) == 2 {
		return append(splitAnd(call.Args[0]), splitAnd(call.Args[1])...)
	}
	return []expr.Expr{e}
}

// equiJoinSides reports whether c is a top-level `=` comparison between a
// plain column reference on the left side (offset < leftWidth) and one on
// the right side (offset >= leftWidth), in either argument order.
func equiJoinSides(c expr.Expr, leftWidth int) (left, right expr.Expr, ok bool) {
	call, isCall := c.(*expr.CompiledFunctionCall)
	if !isCall || call.Name != "=" || len(call.Args) != 2 {
		return nil, nil, false
	}
	a, okA := call.Args[0].(*expr.CompiledColumnReference)
	b, okB := call.Args[1].(*expr.CompiledColumnReference)
	if !okA || !okB {
		return nil, nil, false
	}
	if a.Offset < leftWidth && b.Offset >= leftWidth {
		return a, b, true
	}
	if b.Offset < leftWidth && a.Offset >= leftWidth {
		return b, a, true
	}
	return nil, nil, false
}

