// Package expr implements the compiled scalar/aggregate expression trees
// described by spec.md 4.5: a pre-resolution AST (Constant, FunctionCall,
// Cast, ColumnReference) that the logical-plan validator rewrites, node by
// node, into its compiled form (CompiledFunctionCall, CompiledAggregate,
// CompiledColumnReference) carrying a resolved function.Definition and a
// per-node evaluation buffer.
package expr

import (
	"fmt"
	"regexp"
	"strings"

	"incresql/internal/functions"
	"incresql/internal/types"
)

// Expr is any node in an expression tree, before or after compilation.
type Expr interface {
	// Type returns the expression's declared output type. Only valid on
	// compiled nodes, Constant and Cast (its target type); pre-resolution
	// FunctionCall/ColumnReference nodes have no declared type until the
	// validator resolves them.
	Type() types.DataType
	// Display renders the expression back to SQL (spec.md 4.5).
	Display() string
}

// Constant is a literal value with a declared type.
type Constant struct {
	Value types.Datum
	Typ   types.DataType
}

func (c *Constant) Type() types.DataType { return c.Typ }

func (c *Constant) Display() string {
	return renderLiteral(c.Value, c.Typ)
}

// FunctionCall is a pre-resolution call: a bare function name and
// unresolved argument expressions.
type FunctionCall struct {
	Name string
	Args []Expr
}

func (f *FunctionCall) Type() types.DataType { return types.DataType{} }

func (f *FunctionCall) Display() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.Display()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(parts, ", "))
}

// Cast is compiled by the logical-plan validator (pass 6) into a
// CompiledFunctionCall of "to_<type>" carrying the cast's target type.
type Cast struct {
	Source Expr
	Typ    types.DataType
}

func (c *Cast) Type() types.DataType { return c.Typ }

func (c *Cast) Display() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.Source.Display(), c.Typ.String())
}

// ColumnReference is a pre-resolution reference to a source column by
// name, optionally qualified, or a `*` wildcard for the validator's
// star-expansion pass.
type ColumnReference struct {
	Qualifier string
	Alias     string
	Star      bool
}

func (c *ColumnReference) Type() types.DataType { return types.DataType{} }

func (c *ColumnReference) Display() string {
	name := c.Alias
	if c.Star {
		name = "*"
	}
	if c.Qualifier != "" {
		return fmt.Sprintf("%s.%s", quoteIdent(c.Qualifier), quoteIdentOrStar(name))
	}
	return quoteIdentOrStar(name)
}

// CompiledColumnReference is a ColumnReference resolved to a row offset
// and type during validation pass 6.
type CompiledColumnReference struct {
	Offset int
	Typ    types.DataType
	// DisplayName is retained only for Display/debugging; evaluation uses
	// Offset.
	DisplayName string
}

func (c *CompiledColumnReference) Type() types.DataType { return c.Typ }

func (c *CompiledColumnReference) Display() string { return quoteIdent(c.DisplayName) }

// Eval returns the row's datum at Offset; it borrows from row and is
// invalidated by the producing iterator's next Advance (spec.md 4.5).
func (c *CompiledColumnReference) Eval(row types.Row) types.Datum {
	return row[c.Offset]
}

// CompiledFunctionCall is a resolved scalar call: Def is immutable and
// shared; Args are the (possibly to_<type>-wrapped) compiled children;
// buf is this node's own scratch space for argument evaluation, reused
// across calls and therefore not safe for concurrent reentry (spec.md
// 4.5, 4.9).
type CompiledFunctionCall struct {
	Name string
	Def  *functions.Definition
	Args []Expr
	Typ  types.DataType

	buf []types.Datum
}

func NewCompiledFunctionCall(name string, def *functions.Definition, args []Expr, typ types.DataType) *CompiledFunctionCall {
	return &CompiledFunctionCall{Name: name, Def: def, Args: args, Typ: typ, buf: make([]types.Datum, len(args))}
}

func (c *CompiledFunctionCall) Type() types.DataType { return c.Typ }

func (c *CompiledFunctionCall) Display() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Display()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// Eval implements spec.md 4.5's eval_scalar contract: recursively
// evaluate children into the node's own buffer, then invoke the
// function body. The returned Datum may borrow from row, from c.buf, or
// from a Constant owned elsewhere in the tree; evaluating again
// invalidates anything borrowed from c.buf.
func (c *CompiledFunctionCall) Eval(ctx functions.EvalContext, row types.Row) (types.Datum, error) {
	for i, a := range c.Args {
		v, err := EvalAny(ctx, a, row)
		if err != nil {
			return types.NullDatum, err
		}
		c.buf[i] = v
	}
	d, err := c.Def.Scalar(ctx, c.buf, c.Typ)
	if err != nil {
		return types.NullDatum, err
	}
	return d, nil
}

// CompiledAggregate is a resolved aggregate call: Def.Aggregate supplies
// the state machine; Args are evaluated once per source row by the
// executor driving this node (SortedGroup/HashGroup), not by Eval.
type CompiledAggregate struct {
	Name string
	Def  *functions.Definition
	Args []Expr
	Typ  types.DataType
}

func NewCompiledAggregate(name string, def *functions.Definition, args []Expr, typ types.DataType) *CompiledAggregate {
	return &CompiledAggregate{Name: name, Def: def, Args: args, Typ: typ}
}

func (c *CompiledAggregate) Type() types.DataType { return c.Typ }

func (c *CompiledAggregate) Display() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Display()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// EvalArgs evaluates this aggregate's argument expressions against one
// source row, for use by a group executor's Apply/Retract step.
func (c *CompiledAggregate) EvalArgs(ctx functions.EvalContext, row types.Row, out []types.Datum) error {
	for i, a := range c.Args {
		v, err := EvalAny(ctx, a, row)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// EvalAny evaluates any compiled node (CompiledColumnReference,
// CompiledFunctionCall, or Constant) against row. Pre-resolution nodes
// (FunctionCall, Cast, ColumnReference) must not reach here; the
// validator is responsible for fully compiling the tree first.
func EvalAny(ctx functions.EvalContext, e Expr, row types.Row) (types.Datum, error) {
	switch n := e.(type) {
	case *Constant:
		return n.Value, nil
	case *CompiledColumnReference:
		return n.Eval(row), nil
	case *CompiledFunctionCall:
		return n.Eval(ctx, row)
	case *CompiledAggregate:
		return types.NullDatum, fmt.Errorf("expr: aggregate %q evaluated outside an aggregate position", n.Name)
	default:
		return types.NullDatum, fmt.Errorf("expr: uncompiled node %T cannot be evaluated", e)
	}
}

// EvalRow evaluates a vector of expressions against a source row,
// producing a target row (spec.md 4.5's "row evaluation"). Every
// returned Datum shares the lifetime of row or of the evaluator's
// internal buffers; callers that retain the result across advances
// must call Row.IntoStatic.
func EvalRow(ctx functions.EvalContext, exprs []Expr, row types.Row) (types.Row, error) {
	out := make(types.Row, len(exprs))
	for i, e := range exprs {
		v, err := EvalAny(ctx, e, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// quoteIdent back-tick quotes an identifier that doesn't match the bare
// identifier pattern (spec.md 4.5, 6).
func quoteIdent(s string) string {
	if identRe.MatchString(s) {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func quoteIdentOrStar(s string) string {
	if s == "*" {
		return s
	}
	return quoteIdent(s)
}

// renderLiteral renders a constant's SQL literal form (spec.md 6).
func renderLiteral(d types.Datum, typ types.DataType) string {
	if d.IsNull() {
		return "NULL"
	}
	switch typ.Tag {
	case types.Boolean:
		v, _ := d.AsBoolean()
		if v {
			return "TRUE"
		}
		return "FALSE"
	case types.Text:
		s, _ := d.AsText()
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	case types.Integer:
		v, _ := d.AsInteger()
		return fmt.Sprintf("%d", v)
	case types.BigInt:
		v, _ := d.AsBigInt()
		return fmt.Sprintf("%d", v)
	case types.DecimalType:
		dec, _ := d.AsDecimal()
		return padDecimal(dec, typ.Scale)
	default:
		s, _ := d.AsText()
		return s
	}
}

// padDecimal zero-pads a decimal's fractional digits out to the
// declared scale, per spec.md 6's result-rendering rule.
func padDecimal(d types.Decimal, scale int32) string {
	return d.Rescale(scale).String()
}
