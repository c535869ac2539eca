package logical

import (
	"fmt"

	"incresql/internal/catalog"
	"incresql/internal/expr"
	"incresql/internal/functions"
	"incresql/internal/types"
)

// Validate carries a logical tree through the eight passes of spec.md
// 4.6, in order, returning a fully compiled and normalized tree ready
// for internal/optimize. Compilation errors (PlannerError) abort before
// any storage I/O, matching spec.md 7's policy.
func Validate(query Node, ctx functions.EvalContext, cat *catalog.Catalog, reg *functions.Registry) (Node, error) {
	query = substituteVariables(query, ctx)
	query = normalizeColumnAliases(query)

	query, err := resolveTables(query, cat)
	if err != nil {
		return nil, err
	}
	query = expandStars(query)
	if err := validateValuesTypes(query); err != nil {
		return nil, err
	}
	if err := compileTree(query, reg); err != nil {
		return nil, err
	}
	query = projectToGroupBy(query)
	if err := checkAggregateUsage(query); err != nil {
		return nil, err
	}
	if err := checkPredicates(query); err != nil {
		return nil, err
	}
	if err := checkInserts(query); err != nil {
		return nil, err
	}
	if err := checkUnions(query); err != nil {
		return nil, err
	}
	return query, nil
}

// --- pass 1: substitute session variables ---

func substituteVariables(n Node, ctx functions.EvalContext) Node {
	walkReplaceExprs(n, func(e expr.Expr) expr.Expr {
		return substituteVariablesInExpr(e, ctx)
	})
	for _, c := range n.Children() {
		substituteVariables(c, ctx)
	}
	return n
}

func substituteVariablesInExpr(e expr.Expr, ctx functions.EvalContext) expr.Expr {
	ref, ok := e.(*expr.ColumnReference)
	if !ok || len(ref.Alias) < 2 || ref.Alias[:2] != "@@" {
		if fc, ok := e.(*expr.FunctionCall); ok {
			for i, a := range fc.Args {
				fc.Args[i] = substituteVariablesInExpr(a, ctx)
			}
		}
		if c, ok := e.(*expr.Cast); ok {
			c.Source = substituteVariablesInExpr(c.Source, ctx)
		}
		return e
	}
	if v, found := ctx.Variable(ref.Alias[2:]); found {
		return &expr.Constant{Value: v, Typ: inferType(v)}
	}
	return e
}

func inferType(d types.Datum) types.DataType {
	switch d.Tag() {
	case types.TagBoolean:
		return types.TBoolean
	case types.TagInteger:
		return types.TInteger
	case types.TagBigInt:
		return types.TBigInt
	case types.TagDecimal:
		v, _ := d.AsDecimal()
		return types.TDecimal(types.MaxPrecision, v.Scale)
	case types.TagJsonPath:
		return types.TJsonPath
	default:
		return types.TText
	}
}

// walkReplaceExprs applies fn to every top-level expression slot a node
// owns directly (not recursing into children nodes).
func walkReplaceExprs(n Node, fn func(expr.Expr) expr.Expr) {
	switch t := n.(type) {
	case *Project:
		for i := range t.Expressions {
			t.Expressions[i].Expression = fn(t.Expressions[i].Expression)
		}
	case *Filter:
		t.Predicate = fn(t.Predicate)
	case *Sort:
		for i := range t.SortExpressions {
			t.SortExpressions[i].Expression = fn(t.SortExpressions[i].Expression)
		}
	case *Join:
		t.On = fn(t.On)
	}
}

// --- pass 2: normalize column aliases ---

func normalizeColumnAliases(n Node) Node {
	if p, ok := n.(*Project); ok {
		for i := range p.Expressions {
			if p.Expressions[i].Alias == "" {
				p.Expressions[i].Alias = defaultAlias(p.Expressions[i].Expression, i)
			}
		}
	}
	for _, c := range n.Children() {
		normalizeColumnAliases(c)
	}
	return n
}

func defaultAlias(e expr.Expr, idx int) string {
	if ref, ok := e.(*expr.ColumnReference); ok && !ref.Star {
		return ref.Alias
	}
	return fmt.Sprintf("_col%d", idx+1)
}

// --- pass 3: resolve tables ---

func resolveTables(n Node, cat *catalog.Catalog) (Node, error) {
	if ref, ok := n.(*TableReference); ok {
		db := ref.Database
		if db == "" {
			db = "default"
		}
		tbl, err := cat.Table(db, ref.Table)
		if err != nil {
			return nil, err
		}
		cols := make([]Field, len(tbl.Schema()))
		for i, c := range tbl.Schema() {
			cols[i] = Field{Alias: c.Name, Type: c.Type}
		}
		return &ResolvedTable{Columns: cols, Table: tbl}, nil
	}
	switch t := n.(type) {
	case *Project:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *Filter:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *Limit:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *Sort:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *TableAlias:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *TableInsert:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *NegateFreq:
		src, err := resolveTables(t.Source, cat)
		if err != nil {
			return nil, err
		}
		t.Source = src
	case *UnionAll:
		for i, s := range t.Sources {
			resolved, err := resolveTables(s, cat)
			if err != nil {
				return nil, err
			}
			t.Sources[i] = resolved
		}
	case *Join:
		left, err := resolveTables(t.Left, cat)
		if err != nil {
			return nil, err
		}
		right, err := resolveTables(t.Right, cat)
		if err != nil {
			return nil, err
		}
		t.Left, t.Right = left, right
	}
	return n, nil
}

// --- pass 4: expand stars ---

func expandStars(n Node) Node {
	for _, c := range n.Children() {
		expandStars(c)
	}
	if p, ok := n.(*Project); ok {
		src := p.Source.Fields()
		expanded := make([]NamedExpression, 0, len(p.Expressions))
		for _, ne := range p.Expressions {
			ref, ok := ne.Expression.(*expr.ColumnReference)
			if !ok || !ref.Star {
				expanded = append(expanded, ne)
				continue
			}
			for _, f := range src {
				if ref.Qualifier != "" && f.Qualifier != ref.Qualifier {
					continue
				}
				expanded = append(expanded, NamedExpression{
					Alias:      f.Alias,
					Expression: &expr.ColumnReference{Qualifier: f.Qualifier, Alias: f.Alias},
				})
			}
		}
		p.Expressions = expanded
	}
	return n
}

// --- pass 5: validate Values types ---

func validateValuesTypes(n Node) error {
	if v, ok := n.(*Values); ok {
		if len(v.Data) == 0 {
			return nil
		}
		arity := len(v.Data[0])
		for _, row := range v.Data {
			if len(row) != arity {
				return errPlanner(InvalidValues, "rows have differing arity")
			}
		}
		for col := 0; col < arity; col++ {
			colType := inferType(v.Data[0][col])
			for _, row := range v.Data[1:] {
				t := inferType(row[col])
				widened, ok := types.Widen(colType, t)
				if !ok {
					return errPlanner(InvalidValues, "column %d has non-unifiable types", col)
				}
				colType = widened
			}
			if col < len(v.Columns) {
				v.Columns[col].Type = colType
			}
		}
	}
	for _, c := range n.Children() {
		if err := validateValuesTypes(c); err != nil {
			return err
		}
	}
	return nil
}

// --- pass 6: compile expressions ---

func compileTree(n Node, reg *functions.Registry) error {
	for _, c := range n.Children() {
		if err := compileTree(c, reg); err != nil {
			return err
		}
	}
	fields := SourceFields(n)
	switch t := n.(type) {
	case *Project:
		for i := range t.Expressions {
			compiled, err := compileExpr(t.Expressions[i].Expression, fields, reg)
			if err != nil {
				return err
			}
			t.Expressions[i].Expression = compiled
		}
	case *Filter:
		compiled, err := compileExpr(t.Predicate, fields, reg)
		if err != nil {
			return err
		}
		t.Predicate = compiled
	case *Sort:
		for i := range t.SortExpressions {
			compiled, err := compileExpr(t.SortExpressions[i].Expression, fields, reg)
			if err != nil {
				return err
			}
			t.SortExpressions[i].Expression = compiled
		}
	case *Join:
		compiled, err := compileExpr(t.On, fields, reg)
		if err != nil {
			return err
		}
		t.On = compiled
	}
	return nil
}

func compileExpr(e expr.Expr, fields []Field, reg *functions.Registry) (expr.Expr, error) {
	switch node := e.(type) {
	case *expr.Constant, *expr.CompiledColumnReference, *expr.CompiledFunctionCall, *expr.CompiledAggregate:
		return node, nil
	case *expr.ColumnReference:
		return compileColumnReference(node, fields)
	case *expr.Cast:
		src, err := compileExpr(node.Source, fields, reg)
		if err != nil {
			return nil, err
		}
		name, err := castFunctionName(node.Typ)
		if err != nil {
			return nil, err
		}
		call, err := resolveCall(name, []expr.Expr{src}, reg)
		if err != nil {
			return nil, err
		}
		// A DECIMAL(p,s) target keeps its declared precision and scale
		// rather than to_decimal's generic result type.
		if fc, ok := call.(*expr.CompiledFunctionCall); ok && node.Typ.Tag == types.DecimalType {
			fc.Typ = node.Typ
		}
		return call, nil
	case *expr.FunctionCall:
		args := make([]expr.Expr, len(node.Args))
		for i, a := range node.Args {
			compiled, err := compileExpr(a, fields, reg)
			if err != nil {
				return nil, err
			}
			args[i] = compiled
		}
		return resolveCall(node.Name, args, reg)
	default:
		return nil, fmt.Errorf("logical: unknown expression node %T", e)
	}
}

func compileColumnReference(ref *expr.ColumnReference, fields []Field) (expr.Expr, error) {
	matchIdx := -1
	for i, f := range fields {
		if f.Alias != ref.Alias {
			continue
		}
		if ref.Qualifier != "" && f.Qualifier != ref.Qualifier {
			continue
		}
		if matchIdx != -1 {
			return nil, errPlanner(AmbiguousColumn, "%s", ref.Display())
		}
		matchIdx = i
	}
	if matchIdx == -1 {
		return nil, errPlanner(ColumnNotFound, "%s", ref.Display())
	}
	return &expr.CompiledColumnReference{
		Offset:      matchIdx,
		Typ:         fields[matchIdx].Type,
		DisplayName: ref.Alias,
	}, nil
}

func castFunctionName(t types.DataType) (string, error) {
	switch t.Tag {
	case types.Integer:
		return "to_integer", nil
	case types.BigInt:
		return "to_bigint", nil
	case types.DecimalType:
		return "to_decimal", nil
	case types.Text:
		return "to_text", nil
	case types.Json:
		return "to_json", nil
	case types.ByteA:
		return "to_bytea", nil
	case types.Boolean:
		return "to_boolean", nil
	default:
		return "", errPlanner(TypeMismatch, "no cast target for %s", t.String())
	}
}

// resolveCall resolves name against reg with already-compiled args,
// wrapping mismatched argument types in to_<type> casts, then builds
// the appropriate compiled node. Compound definitions are expanded by
// substituting their rewrite tree with args and recompiling.
func resolveCall(name string, args []expr.Expr, reg *functions.Registry) (expr.Expr, error) {
	argTypes := make([]types.DataType, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}
	def, coerced, ret, err := reg.Resolve(name, argTypes)
	if err != nil {
		return nil, errPlanner(FunctionNotFound, "%v", err)
	}

	if def.Kind == functions.CompoundKind {
		rewritten, err := buildFromCompound(&def.Compound.Rewrite, args)
		if err != nil {
			return nil, err
		}
		return compileExpr(rewritten, nil, reg)
	}

	wrapped := make([]expr.Expr, len(args))
	for i, a := range args {
		if i < len(coerced) && !a.Type().Equals(coerced[i]) {
			castName, err := castFunctionName(coerced[i])
			if err != nil {
				return nil, err
			}
			call, err := resolveCall(castName, []expr.Expr{a}, reg)
			if err != nil {
				return nil, err
			}
			wrapped[i] = call
		} else {
			wrapped[i] = a
		}
	}

	switch def.Kind {
	case functions.AggregateKind:
		return expr.NewCompiledAggregate(name, def, wrapped, ret), nil
	default:
		return expr.NewCompiledFunctionCall(name, def, wrapped, ret), nil
	}
}

func buildFromCompound(call *functions.CompoundCall, originalArgs []expr.Expr) (expr.Expr, error) {
	args := make([]expr.Expr, len(call.Args))
	for i, spec := range call.Args {
		if spec.Call != nil {
			nested, err := buildFromCompound(spec.Call, originalArgs)
			if err != nil {
				return nil, err
			}
			args[i] = nested
			continue
		}
		if spec.Index < 0 || spec.Index >= len(originalArgs) {
			return nil, fmt.Errorf("logical: compound rewrite argument index %d out of range", spec.Index)
		}
		args[i] = originalArgs[spec.Index]
	}
	return &expr.FunctionCall{Name: call.Name, Args: args}, nil
}

// --- pass 7: convert aggregate Projects to GroupBy ---

func projectToGroupBy(n Node) Node {
	for _, c := range n.Children() {
		projectToGroupBy(c)
	}
	p, ok := n.(*Project)
	if !ok {
		return n
	}
	hasAgg := false
	for _, ne := range p.Expressions {
		if _, isAgg := ne.Expression.(*expr.CompiledAggregate); isAgg {
			hasAgg = true
			break
		}
	}
	if !hasAgg {
		return n
	}
	gb := &GroupBy{Source: p.Source}
	for _, ne := range p.Expressions {
		if _, isAgg := ne.Expression.(*expr.CompiledAggregate); isAgg {
			gb.AggExpressions = append(gb.AggExpressions, ne)
		} else {
			gb.KeyExpressions = append(gb.KeyExpressions, ne)
		}
	}
	return gb
}

// --- pass 8: final checks ---

func checkAggregateUsage(n Node) error {
	var check func(e expr.Expr) error
	check = func(e expr.Expr) error {
		switch t := e.(type) {
		case *expr.CompiledFunctionCall:
			for _, a := range t.Args {
				if _, isAgg := a.(*expr.CompiledAggregate); isAgg {
					return errPlanner(AggregateMisuse, "aggregate used as a scalar argument")
				}
				if err := check(a); err != nil {
					return err
				}
			}
		}
		return nil
	}
	switch t := n.(type) {
	case *Project:
		for _, ne := range t.Expressions {
			if err := check(ne.Expression); err != nil {
				return err
			}
		}
	case *Filter:
		if err := check(t.Predicate); err != nil {
			return err
		}
		if _, isAgg := t.Predicate.(*expr.CompiledAggregate); isAgg {
			return errPlanner(AggregateMisuse, "aggregate used in a filter predicate")
		}
	case *GroupBy:
		for _, ne := range t.KeyExpressions {
			if _, isAgg := ne.Expression.(*expr.CompiledAggregate); isAgg {
				return errPlanner(AggregateMisuse, "aggregate used as a grouping key")
			}
		}
	}
	for _, c := range n.Children() {
		if err := checkAggregateUsage(c); err != nil {
			return err
		}
	}
	return nil
}

func checkPredicates(n Node) error {
	switch t := n.(type) {
	case *Filter:
		if !t.Predicate.Type().Equals(types.TBoolean) {
			return errPlanner(TypeMismatch, "filter predicate must be boolean")
		}
	case *Join:
		if !t.On.Type().Equals(types.TBoolean) {
			return errPlanner(TypeMismatch, "join condition must be boolean")
		}
	}
	for _, c := range n.Children() {
		if err := checkPredicates(c); err != nil {
			return err
		}
	}
	return nil
}

func checkInserts(n Node) error {
	if ins, ok := n.(*TableInsert); ok {
		schema := ins.Table.Schema()
		src := ins.Source.Fields()
		if len(schema) != len(src) {
			return errPlanner(TypeMismatch, "insert source has %d columns, target has %d", len(src), len(schema))
		}
		for i, col := range schema {
			if !col.Type.Equals(src[i].Type) {
				if _, ok := types.Widen(src[i].Type, col.Type); !ok {
					return errPlanner(TypeMismatch, "insert column %d: %s is not assignable to %s", i, src[i].Type.String(), col.Type.String())
				}
			}
		}
	}
	for _, c := range n.Children() {
		if err := checkInserts(c); err != nil {
			return err
		}
	}
	return nil
}

func checkUnions(n Node) error {
	if u, ok := n.(*UnionAll); ok {
		first := u.Sources[0].Fields()
		for _, s := range u.Sources[1:] {
			fields := s.Fields()
			if len(fields) != len(first) {
				return errPlanner(TypeMismatch, "UNION ALL branches have differing arity")
			}
			for i := range fields {
				if !fields[i].Type.Equals(first[i].Type) {
					return errPlanner(TypeMismatch, "UNION ALL branch column %d type mismatch", i)
				}
			}
		}
	}
	for _, c := range n.Children() {
		if err := checkUnions(c); err != nil {
			return err
		}
	}
	return nil
}
