// Package physical implements the point-in-time physical plan of spec.md
// 4.7: a one-to-one lowering of an optimized logical.Node tree into the
// concrete operator shapes internal/exec knows how to run -- grouped
// aggregation chooses between SortedGroup and HashGroup, joins lower to a
// HashJoin with a derived equi-join key length, and every table reference
// becomes a fixed-timestamp TableScan. Grounded on the teacher's
// internal/dialect/mysql/migration.go, which lowers an abstract diff into
// concrete dialect statements the same one-operator-at-a-time way.
package physical

import (
	"incresql/internal/expr"
	"incresql/internal/logical"
	"incresql/internal/storage"
	"incresql/internal/types"
)

// Node is any physical operator. Unlike logical.Node, a physical tree
// carries no further rewrite passes -- internal/exec builds one executor
// per node, one to one.
type Node interface {
	Fields() []logical.Field
	Children() []Node
}

type Single struct{}

func (Single) Fields() []logical.Field { return nil }
func (Single) Children() []Node        { return nil }

type Values struct {
	Data    []types.Row
	Columns []logical.Field
}

func (v *Values) Fields() []logical.Field { return v.Columns }
func (v *Values) Children() []Node        { return nil }

// Project evaluates Expressions against each source row, exactly as its
// logical counterpart (spec.md 4.8).
type Project struct {
	Distinct    bool
	Expressions []logical.NamedExpression
	Source      Node
}

func (p *Project) Fields() []logical.Field {
	out := make([]logical.Field, len(p.Expressions))
	for i, ne := range p.Expressions {
		out[i] = logical.Field{Alias: ne.Alias, Type: ne.Expression.Type()}
	}
	return out
}
func (p *Project) Children() []Node { return []Node{p.Source} }

type Filter struct {
	Predicate expr.Expr
	Source    Node
}

func (f *Filter) Fields() []logical.Field { return f.Source.Fields() }
func (f *Filter) Children() []Node        { return []Node{f.Source} }

type Limit struct {
	Offset   int64
	Limit    int64
	HasLimit bool
	Source   Node
}

func (l *Limit) Fields() []logical.Field { return l.Source.Fields() }
func (l *Limit) Children() []Node        { return []Node{l.Source} }

type Sort struct {
	SortExpressions []logical.SortExpression
	Source          Node
}

func (s *Sort) Fields() []logical.Field { return s.Source.Fields() }
func (s *Sort) Children() []Node        { return []Node{s.Source} }

type UnionAll struct {
	Sources []Node
}

func (u *UnionAll) Fields() []logical.Field { return u.Sources[0].Fields() }
func (u *UnionAll) Children() []Node        { return u.Sources }

// TableScan reads Table at a fixed point-in-time Timestamp (spec.md 4.7:
// "ResolvedTable becomes TableScan{table, timestamp: MAX}").
type TableScan struct {
	Table     *storage.Table
	Columns   []logical.Field
	Timestamp storage.LogicalTimestamp
}

func (t *TableScan) Fields() []logical.Field { return t.Columns }
func (t *TableScan) Children() []Node        { return nil }

type TableInsert struct {
	Table  *storage.Table
	Source Node
}

func (t *TableInsert) Fields() []logical.Field { return nil }
func (t *TableInsert) Children() []Node        { return []Node{t.Source} }

type NegateFreq struct {
	Source Node
}

func (n *NegateFreq) Fields() []logical.Field { return n.Source.Fields() }
func (n *NegateFreq) Children() []Node        { return []Node{n.Source} }

type FileScan struct {
	Directory    string
	SerdeOptions map[string]string
}

func (FileScan) Fields() []logical.Field {
	return []logical.Field{{Alias: "data", Type: types.TJson}}
}
func (FileScan) Children() []Node { return nil }

// SortedGroup streams a source already sorted by its leading KeyLen
// columns, maintaining one running aggregate state per key and emitting
// on key change (spec.md 4.7/4.8). KeyLen == 0 is the global-aggregate
// case: it emits exactly one row even over an empty source.
type SortedGroup struct {
	KeyLen         int
	KeyExpressions []expr.Expr
	Aggregates     []*expr.CompiledAggregate
	Fields_        []logical.Field
	Source         Node
}

func (g *SortedGroup) Fields() []logical.Field { return g.Fields_ }
func (g *SortedGroup) Children() []Node        { return []Node{g.Source} }

// HashGroup builds an in-memory hash table keyed by the values of its
// KeyExpressions, updating aggregate state per group as the source is drained,
// then emits every group once the source is exhausted (spec.md 4.7/4.8).
type HashGroup struct {
	KeyLen         int
	KeyExpressions []expr.Expr
	Aggregates     []*expr.CompiledAggregate
	Fields_        []logical.Field
	Source         Node
}

func (g *HashGroup) Fields() []logical.Field { return g.Fields_ }
func (g *HashGroup) Children() []Node        { return []Node{g.Source} }

// HashJoin buffers Right into a table keyed by RightKeys (evaluated per
// right row), probing it once per Left row via the corresponding
// LeftKeys, and evaluating every Residual conjunct (ANDed together)
// against any candidate match (spec.md 4.7/4.8). KeyLen is len(LeftKeys),
// kept as its own field because it is also the count spec.md 4.7 calls
// out directly ("key_len counts top-level = conjuncts...").
type HashJoin struct {
	Left, Right         Node
	KeyLen              int
	LeftKeys, RightKeys []expr.Expr
	Residual            []expr.Expr
	Type                logical.JoinType
}

func (j *HashJoin) Fields() []logical.Field {
	return append(append([]logical.Field{}, j.Left.Fields()...), j.Right.Fields()...)
}
func (j *HashJoin) Children() []Node { return []Node{j.Left, j.Right} }
