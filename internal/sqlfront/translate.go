// Package sqlfront turns SQL text into the pre-resolution logical.Node
// trees and catalog operations spec.md §6 describes, and renders result
// cells back to text. We reuse the same TiDB-grammar parser the teacher's
// internal/parser/mysql package already depends on
// (github.com/pingcap/tidb/pkg/parser) for statement-level shape
// (CreateDatabaseStmt/DropDatabaseStmt/UseStmt/CreateTableStmt/
// SelectStmt/InsertStmt/SetOprStmt and their FieldList/TableRefsClause/
// GroupByClause/OrderByClause/Limit children), exactly as
// internal/parser/mysql/parser.go walks ast.CreateTableStmt. Individual
// scalar expressions are restored to text (format.Restore, the same
// technique that package uses for default/check/generated expressions)
// and handed to this package's own small recursive-descent exprParser,
// since the engine's scalar grammar (spec.md 4.4/4.5/6) is its own
// well-defined subset rather than anything MySQL-specific.
package sqlfront

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/mysql"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"incresql/internal/catalog"
	"incresql/internal/expr"
	"incresql/internal/logical"
	"incresql/internal/types"
)

// Statement is one top-level SQL statement translated out of its SQL
// text: either a query/DML tree ready for logical.Validate, or a DDL
// directive the runtime executes directly against the catalog (DDL
// never goes through the validate/optimize/lower pipeline, since it has
// no rows to stream -- spec.md 4.3).
type Statement struct {
	Query      logical.Node
	DDL        *DDL
	RawSQL     string
}

// DDLKind enumerates the catalog-level operations the SQL surface
// exposes (spec.md §6).
type DDLKind int

const (
	CreateDatabase DDLKind = iota
	DropDatabase
	UseDatabase
	CreateTable
)

// DDL is one non-query statement, resolved enough for the runtime to
// apply directly (spec.md 4.3): Columns is only populated for
// CreateTable.
type DDL struct {
	Kind     DDLKind
	Database string
	Table    string
	Columns  []catalog.Column
}

// Translator parses SQL text with a shared *parser.Parser instance (not
// safe for concurrent use, matching internal/apply's
// *parser.Parser-per-analyzer pattern) and turns each resulting
// ast.StmtNode into a Statement. It holds a *catalog.Catalog because
// INSERT's target table must be resolved to a live storage.Table handle
// at translation time: unlike a SELECT's FROM clause (left as a
// logical.TableReference for logical.Validate's pass 3 to resolve),
// logical.TableInsert.Table is a *storage.Table field with no
// pre-resolution counterpart.
type Translator struct {
	p   *parser.Parser
	cat *catalog.Catalog
}

func NewTranslator(cat *catalog.Catalog) *Translator {
	return &Translator{p: parser.New(), cat: cat}
}

// Translate parses sql (one or more ;-separated statements) and
// translates each in turn. defaultDatabase fills in any table reference
// or DDL target that carries no explicit schema qualifier (spec.md §6);
// callers pass the issuing session's current database.
func (t *Translator) Translate(sql string, defaultDatabase string) ([]Statement, error) {
	stmtNodes, _, err := t.p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("sqlfront: parse: %w", err)
	}
	out := make([]Statement, 0, len(stmtNodes))
	for _, node := range stmtNodes {
		stmt, err := t.translateStmt(node, defaultDatabase)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (t *Translator) translateStmt(node ast.StmtNode, defaultDatabase string) (Statement, error) {
	raw := restore(node)
	switch n := node.(type) {
	case *ast.CreateDatabaseStmt:
		return Statement{RawSQL: raw, DDL: &DDL{Kind: CreateDatabase, Database: n.Name}}, nil
	case *ast.DropDatabaseStmt:
		return Statement{RawSQL: raw, DDL: &DDL{Kind: DropDatabase, Database: n.Name}}, nil
	case *ast.UseStmt:
		return Statement{RawSQL: raw, DDL: &DDL{Kind: UseDatabase, Database: n.DBName}}, nil
	case *ast.CreateTableStmt:
		db := n.Table.Schema.O
		if db == "" {
			db = defaultDatabase
		}
		cols, err := translateColumnDefs(n.Cols)
		if err != nil {
			return Statement{}, err
		}
		return Statement{RawSQL: raw, DDL: &DDL{Kind: CreateTable, Database: db, Table: n.Table.Name.O, Columns: cols}}, nil
	case *ast.SelectStmt:
		q, err := translateSelect(n, defaultDatabase)
		if err != nil {
			return Statement{}, err
		}
		return Statement{RawSQL: raw, Query: q}, nil
	case *ast.SetOprStmt:
		q, err := translateSetOpr(n, defaultDatabase)
		if err != nil {
			return Statement{}, err
		}
		return Statement{RawSQL: raw, Query: q}, nil
	case *ast.InsertStmt:
		q, err := t.translateInsert(n, defaultDatabase)
		if err != nil {
			return Statement{}, err
		}
		return Statement{RawSQL: raw, Query: q}, nil
	default:
		return Statement{}, fmt.Errorf("sqlfront: unsupported statement: %s", raw)
	}
}

func restore(node ast.Node) string {
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := node.Restore(ctx); err != nil {
		return ""
	}
	return sb.String()
}

func restoreExpr(e ast.ExprNode) (string, error) {
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := e.Restore(ctx); err != nil {
		return "", fmt.Errorf("sqlfront: restore expression: %w", err)
	}
	return sb.String(), nil
}

func translateExpr(e ast.ExprNode) (expr.Expr, error) {
	text, err := restoreExpr(e)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseExpr(text)
	if err != nil {
		return nil, fmt.Errorf("sqlfront: expression %q: %w", text, err)
	}
	return parsed, nil
}

// --- CREATE TABLE column types ---

// translateColumnDefs maps TiDB column definitions to catalog.Column,
// following internal/parser/mysql/parser.go's ast.ColumnDef walk but
// mapping to our closed DataType set (spec.md 4.1) instead of
// core.Column's free-text TypeRaw.
func translateColumnDefs(cols []*ast.ColumnDef) ([]catalog.Column, error) {
	out := make([]catalog.Column, len(cols))
	for i, c := range cols {
		dt, err := columnDataType(c)
		if err != nil {
			return nil, err
		}
		out[i] = catalog.Column{Name: c.Name.Name.O, Type: dt}
	}
	return out, nil
}

func columnDataType(c *ast.ColumnDef) (types.DataType, error) {
	tp := c.Tp
	switch tp.GetType() {
	case mysql.TypeTiny:
		if tp.GetFlen() == 1 {
			return types.TBoolean, nil
		}
		return types.TInteger, nil
	case mysql.TypeShort, mysql.TypeInt24, mysql.TypeLong:
		return types.TInteger, nil
	case mysql.TypeLonglong:
		return types.TBigInt, nil
	case mysql.TypeNewDecimal, mysql.TypeDecimal:
		return types.TDecimal(int32(tp.GetFlen()), int32(tp.GetDecimal())), nil
	case mysql.TypeDate, mysql.TypeNewDate:
		return types.TDate, nil
	case mysql.TypeTimestamp, mysql.TypeDatetime:
		return types.TTimestamp, nil
	case mysql.TypeJSON:
		return types.TJson, nil
	case mysql.TypeBlob, mysql.TypeTinyBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob, mysql.TypeVarchar, mysql.TypeVarString, mysql.TypeString:
		if strings.EqualFold(tp.GetCharset(), "binary") {
			return types.TByteA, nil
		}
		return types.TText, nil
	default:
		return types.DataType{}, fmt.Errorf("sqlfront: unsupported column type %q for %s", tp.String(), c.Name.Name.O)
	}
}

// --- SELECT ---

func translateSelect(stmt *ast.SelectStmt, defaultDatabase string) (logical.Node, error) {
	var source logical.Node = logical.Single{}
	var err error
	if stmt.From != nil {
		source, err = translateTableRefs(stmt.From, defaultDatabase)
		if err != nil {
			return nil, err
		}
	}
	if stmt.Where != nil {
		pred, err := translateExpr(stmt.Where)
		if err != nil {
			return nil, err
		}
		source = &logical.Filter{Predicate: pred, Source: source}
	}

	fields, err := translateFieldList(stmt.Fields)
	if err != nil {
		return nil, err
	}
	// GROUP BY itself contributes nothing here: validation's
	// projectToGroupBy pass splits this Project into a GroupBy by which
	// of its own expressions compile to aggregates, which only holds
	// once every grouping column already appears in the select list
	// (the only shape the engine supports, e.g. "SELECT a, count(*)
	// FROM t GROUP BY a"). A GROUP BY naming a column absent from the
	// select list has nothing to key on and is rejected downstream.
	var node logical.Node = &logical.Project{Distinct: stmt.Distinct, Expressions: fields, Source: source}

	if stmt.OrderBy != nil {
		sortExprs, err := translateOrderBy(stmt.OrderBy)
		if err != nil {
			return nil, err
		}
		node = &logical.Sort{SortExpressions: sortExprs, Source: node}
	}
	if stmt.Limit != nil {
		lim, err := translateLimit(stmt.Limit)
		if err != nil {
			return nil, err
		}
		lim.Source = node
		node = lim
	}
	return node, nil
}

func translateFieldList(fl *ast.FieldList) ([]logical.NamedExpression, error) {
	if fl == nil {
		return nil, nil
	}
	out := make([]logical.NamedExpression, 0, len(fl.Fields))
	for i, f := range fl.Fields {
		if f.WildCard != nil {
			out = append(out, logical.NamedExpression{
				Expression: &expr.ColumnReference{Qualifier: f.WildCard.Table.O, Star: true},
			})
			continue
		}
		e, err := translateExpr(f.Expr)
		if err != nil {
			return nil, err
		}
		alias := f.AsName.O
		if alias == "" {
			if col, ok := e.(*expr.ColumnReference); ok && !col.Star {
				alias = col.Alias
			} else {
				alias = fmt.Sprintf("_col%d", i+1)
			}
		}
		out = append(out, logical.NamedExpression{Alias: alias, Expression: e})
	}
	return out, nil
}

func translateOrderBy(ob *ast.OrderByClause) ([]logical.SortExpression, error) {
	out := make([]logical.SortExpression, len(ob.Items))
	for i, it := range ob.Items {
		e, err := translateExpr(it.Expr)
		if err != nil {
			return nil, err
		}
		order := types.Ascending
		if it.Desc {
			order = types.Descending
		}
		out[i] = logical.SortExpression{Expression: e, Order: order}
	}
	return out, nil
}

func translateLimit(l *ast.Limit) (*logical.Limit, error) {
	out := &logical.Limit{HasLimit: true}
	if l.Count != nil {
		n, err := evalIntLiteral(l.Count)
		if err != nil {
			return nil, err
		}
		out.Limit = n
	}
	if l.Offset != nil {
		n, err := evalIntLiteral(l.Offset)
		if err != nil {
			return nil, err
		}
		out.Offset = n
	}
	return out, nil
}

func evalIntLiteral(e ast.ExprNode) (int64, error) {
	parsed, err := translateExpr(e)
	if err != nil {
		return 0, err
	}
	c, ok := parsed.(*expr.Constant)
	if !ok {
		return 0, fmt.Errorf("sqlfront: LIMIT/OFFSET must be a literal integer")
	}
	switch c.Typ.Tag {
	case types.Integer:
		v, _ := c.Value.AsInteger()
		return int64(v), nil
	case types.BigInt:
		v, _ := c.Value.AsBigInt()
		return v, nil
	default:
		return 0, fmt.Errorf("sqlfront: LIMIT/OFFSET must be a literal integer")
	}
}

// --- FROM / table references ---

func translateTableRefs(clause *ast.TableRefsClause, defaultDatabase string) (logical.Node, error) {
	return translateResultSetNode(clause.TableRefs, defaultDatabase)
}

func translateResultSetNode(n ast.ResultSetNode, defaultDatabase string) (logical.Node, error) {
	switch t := n.(type) {
	case *ast.Join:
		if t.Right != nil {
			return nil, fmt.Errorf("sqlfront: joins are not part of the supported SQL surface")
		}
		return translateResultSetNode(t.Left, defaultDatabase)
	case *ast.TableSource:
		src, err := translateResultSetNode(t.Source, defaultDatabase)
		if err != nil {
			return nil, err
		}
		if t.AsName.O != "" {
			return &logical.TableAlias{Alias: t.AsName.O, Source: src}, nil
		}
		return src, nil
	case *ast.TableName:
		db := t.Schema.O
		if db == "" {
			db = defaultDatabase
		}
		return &logical.TableReference{Database: db, Table: t.Name.O}, nil
	case *ast.SelectStmt:
		return translateSelect(t, defaultDatabase)
	case *ast.SetOprStmt:
		return translateSetOpr(t, defaultDatabase)
	default:
		return nil, fmt.Errorf("sqlfront: unsupported FROM source %T", n)
	}
}

// --- UNION ALL ---

func translateSetOpr(stmt *ast.SetOprStmt, defaultDatabase string) (logical.Node, error) {
	if stmt.SelectList == nil || len(stmt.SelectList.Selects) == 0 {
		return nil, fmt.Errorf("sqlfront: empty set operation")
	}
	sources := make([]logical.Node, 0, len(stmt.SelectList.Selects))
	for i, sel := range stmt.SelectList.Selects {
		selStmt, ok := sel.(*ast.SelectStmt)
		if !ok {
			return nil, fmt.Errorf("sqlfront: unsupported set-operation branch %T", sel)
		}
		if i > 0 && selStmt.AfterSetOperator != nil && *selStmt.AfterSetOperator != ast.UnionAll {
			return nil, fmt.Errorf("sqlfront: only UNION ALL is supported")
		}
		node, err := translateSelect(selStmt, defaultDatabase)
		if err != nil {
			return nil, err
		}
		sources = append(sources, node)
	}
	var node logical.Node = &logical.UnionAll{Sources: sources}
	if stmt.OrderBy != nil {
		sortExprs, err := translateOrderBy(stmt.OrderBy)
		if err != nil {
			return nil, err
		}
		node = &logical.Sort{SortExpressions: sortExprs, Source: node}
	}
	if stmt.Limit != nil {
		lim, err := translateLimit(stmt.Limit)
		if err != nil {
			return nil, err
		}
		lim.Source = node
		node = lim
	}
	return node, nil
}

// --- INSERT ---

func (t *Translator) translateInsert(stmt *ast.InsertStmt, defaultDatabase string) (logical.Node, error) {
	if len(stmt.Columns) != 0 {
		return nil, fmt.Errorf("sqlfront: INSERT with an explicit column list is not supported, list columns in table declaration order")
	}
	target, err := tableNameFromRefs(stmt.Table)
	if err != nil {
		return nil, err
	}
	db := target.Schema.O
	if db == "" {
		db = defaultDatabase
	}
	targetTable, err := t.cat.Table(db, target.Name.O)
	if err != nil {
		return nil, fmt.Errorf("sqlfront: resolve INSERT target: %w", err)
	}

	var source logical.Node
	if stmt.Select != nil {
		switch sel := stmt.Select.(type) {
		case *ast.SelectStmt:
			source, err = translateSelect(sel, defaultDatabase)
		case *ast.SetOprStmt:
			source, err = translateSetOpr(sel, defaultDatabase)
		default:
			err = fmt.Errorf("sqlfront: unsupported INSERT ... SELECT source %T", stmt.Select)
		}
		if err != nil {
			return nil, err
		}
	} else {
		rows := make([]types.Row, len(stmt.Lists))
		arity := 0
		if len(stmt.Lists) > 0 {
			arity = len(stmt.Lists[0])
		}
		for i, list := range stmt.Lists {
			row := make(types.Row, len(list))
			for j, item := range list {
				e, err := translateExpr(item)
				if err != nil {
					return nil, err
				}
				c, ok := e.(*expr.Constant)
				if !ok {
					return nil, fmt.Errorf("sqlfront: INSERT ... VALUES entries must be literals")
				}
				row[j] = c.Value
			}
			rows[i] = row
		}
		cols := make([]logical.Field, arity)
		for i := range cols {
			cols[i] = logical.Field{Alias: fmt.Sprintf("_col%d", i+1)}
		}
		source = &logical.Values{Data: rows, Columns: cols}
	}

	return &logical.TableInsert{
		Table:  targetTable,
		Source: source,
	}, nil
}

func tableNameFromRefs(clause *ast.TableRefsClause) (*ast.TableName, error) {
	join := clause.TableRefs
	if join == nil {
		return nil, fmt.Errorf("sqlfront: unsupported INSERT target")
	}
	src, ok := join.Left.(*ast.TableSource)
	if !ok {
		return nil, fmt.Errorf("sqlfront: unsupported INSERT target")
	}
	name, ok := src.Source.(*ast.TableName)
	if !ok {
		return nil, fmt.Errorf("sqlfront: unsupported INSERT target")
	}
	return name, nil
}
