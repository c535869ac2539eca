// Package logical implements the relational operator tree described by
// spec.md 4.6: a pre-resolution AST produced from the SQL front-end,
// carried through eight validation/normalization passes, and handed to
// internal/optimize for rewriting before internal/physical lowers it to
// a point-in-time operator tree.
package logical

import (
	"incresql/internal/expr"
	"incresql/internal/storage"
	"incresql/internal/types"
)

// Node is any logical operator. Each declares the output row shape its
// parent sees (Fields), the row shape its own expressions may reference
// (SourceFields), and its children for tree-walking passes.
type Node interface {
	Fields() []Field
	Children() []Node
}

// Field describes one output column: an optional table qualifier (set
// by TableAlias), a display alias, and a declared type.
type Field struct {
	Qualifier string
	Alias     string
	Type      types.DataType
}

// NamedExpression pairs a projected expression with its output alias
// (assigned by validation pass 2 when the SQL omitted one).
type NamedExpression struct {
	Alias      string
	Expression expr.Expr
}

// Single yields one empty row with freq 1, then none (spec.md 4.6/4.8).
type Single struct{}

func (Single) Fields() []Field  { return nil }
func (Single) Children() []Node { return nil }

// Values is a literal row set: Data is Rows x len(Columns) in length,
// Columns gives the declared column names/types (validation pass 5
// unifies each column's element type across rows).
type Values struct {
	Data    []types.Row
	Columns []Field
}

func (v *Values) Fields() []Field  { return v.Columns }
func (v *Values) Children() []Node { return nil }

// Project evaluates Expressions against each source row; Distinct
// requests duplicate elimination (by full output row).
type Project struct {
	Distinct    bool
	Expressions []NamedExpression
	Source      Node
}

func (p *Project) Fields() []Field {
	out := make([]Field, len(p.Expressions))
	for i, ne := range p.Expressions {
		out[i] = Field{Alias: ne.Alias, Type: ne.Expression.Type()}
	}
	return out
}
func (p *Project) Children() []Node { return []Node{p.Source} }

// GroupBy is Project containing an aggregate, split by validation pass
// 7 into key expressions (the GROUP BY list) and aggregate expressions.
type GroupBy struct {
	KeyExpressions []NamedExpression
	AggExpressions []NamedExpression
	Source         Node
}

func (g *GroupBy) Fields() []Field {
	out := make([]Field, 0, len(g.KeyExpressions)+len(g.AggExpressions))
	for _, ne := range g.KeyExpressions {
		out = append(out, Field{Alias: ne.Alias, Type: ne.Expression.Type()})
	}
	for _, ne := range g.AggExpressions {
		out = append(out, Field{Alias: ne.Alias, Type: ne.Expression.Type()})
	}
	return out
}
func (g *GroupBy) Children() []Node { return []Node{g.Source} }

// Filter retains only rows whose Predicate evaluates to Boolean(true)
// (spec.md 4.8: Null and false both discard).
type Filter struct {
	Predicate expr.Expr
	Source    Node
}

func (f *Filter) Fields() []Field  { return f.Source.Fields() }
func (f *Filter) Children() []Node { return []Node{f.Source} }

// Limit skips Offset rows (by frequency-weighted count) then emits
// until cumulative positive freq reaches Limit; HasLimit distinguishes
// "OFFSET n" with no declared limit from "LIMIT 0".
type Limit struct {
	Offset   int64
	Limit    int64
	HasLimit bool
	Source   Node
}

func (l *Limit) Fields() []Field  { return l.Source.Fields() }
func (l *Limit) Children() []Node { return []Node{l.Source} }

// SortExpression is one ORDER BY term.
type SortExpression struct {
	Expression expr.Expr
	Order      types.SortOrder
}

// Sort materializes its source and streams it back in the declared
// order (spec.md 4.8: stable sort by encoded key).
type Sort struct {
	SortExpressions []SortExpression
	Source          Node
}

func (s *Sort) Fields() []Field  { return s.Source.Fields() }
func (s *Sort) Children() []Node { return []Node{s.Source} }

// UnionAll concatenates Sources in declared order; validation pass 8
// requires identical arity and element types across branches.
type UnionAll struct {
	Sources []Node
}

func (u *UnionAll) Fields() []Field  { return u.Sources[0].Fields() }
func (u *UnionAll) Children() []Node { return u.Sources }

// TableReference is a pre-resolution reference to a database.table
// name, resolved by validation pass 3 into ResolvedTable.
type TableReference struct {
	Database string
	Table    string
}

func (TableReference) Fields() []Field {
	panic("logical: TableReference has no fields before resolution")
}
func (TableReference) Children() []Node { return nil }

// ResolvedTable is a TableReference bound to a live storage.Table
// handle; Columns gives the declared schema in storage column order.
type ResolvedTable struct {
	Columns []Field
	Table   *storage.Table
}

func (r *ResolvedTable) Fields() []Field  { return r.Columns }
func (r *ResolvedTable) Children() []Node { return nil }

// TableAlias re-qualifies every field of Source under Alias (e.g. `FROM
// t AS x` makes `x.col` resolvable).
type TableAlias struct {
	Alias  string
	Source Node
}

func (a *TableAlias) Fields() []Field {
	src := a.Source.Fields()
	out := make([]Field, len(src))
	for i, f := range src {
		out[i] = Field{Qualifier: a.Alias, Alias: f.Alias, Type: f.Type}
	}
	return out
}
func (a *TableAlias) Children() []Node { return []Node{a.Source} }

// TableInsert drains Source and writes each row into Table (spec.md
// 4.8); it has no output fields.
type TableInsert struct {
	Table  *storage.Table
	Source Node
}

func (t *TableInsert) Fields() []Field   { return nil }
func (t *TableInsert) Children() []Node { return []Node{t.Source} }

// NegateFreq flips the sign of every row's frequency, used to build
// retraction feeds.
type NegateFreq struct {
	Source Node
}

func (n *NegateFreq) Fields() []Field  { return n.Source.Fields() }
func (n *NegateFreq) Children() []Node { return []Node{n.Source} }

// FileScan iterates files under Directory, surfacing a single `data`
// column of Json type (spec.md 4.6/4.8).
type FileScan struct {
	Directory    string
	SerdeOptions map[string]string
}

func (FileScan) Fields() []Field {
	return []Field{{Alias: "data", Type: types.TJson}}
}
func (FileScan) Children() []Node { return nil }

// JoinType distinguishes inner from left-outer joins.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
)

// Join combines Left and Right rows passing On; validation pass 8
// requires On to be Boolean-typed.
type Join struct {
	Left, Right Node
	On          expr.Expr
	Type        JoinType
}

func (j *Join) Fields() []Field {
	return append(append([]Field{}, j.Left.Fields()...), j.Right.Fields()...)
}
func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }

// SourceFields returns the fields visible to expressions owned
// directly by node (its "source fields", per the teacher source's
// source_fields_for_operator): usually its child's output fields, or
// both children concatenated for a Join's ON clause.
func SourceFields(n Node) []Field {
	switch t := n.(type) {
	case *Project:
		return t.Source.Fields()
	case *GroupBy:
		return t.Source.Fields()
	case *Filter:
		return t.Source.Fields()
	case *Limit:
		return t.Source.Fields()
	case *Sort:
		return t.Source.Fields()
	case *TableAlias:
		return t.Source.Fields()
	case *UnionAll:
		return t.Sources[0].Fields()
	case *TableInsert:
		return t.Source.Fields()
	case *NegateFreq:
		return t.Source.Fields()
	case *Join:
		return n.Fields()
	default:
		return nil
	}
}
