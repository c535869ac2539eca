// Package runtime wires the rest of the engine into the connection model
// spec.md §5 describes: a shared Catalog and function Registry behind a
// Runtime, one Session per Connection, and a planner entry point that
// carries a statement from SQL text through
// parse -> validate -> optimize -> lower -> execute. Grounded on the
// teacher's internal/apply.Applier, which holds the shared dependencies
// (dialect, options) a single tool instance needs and hands out
// per-invocation state the way Runtime hands out per-connection Sessions.
package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"incresql/internal/catalog"
	"incresql/internal/exec"
	"incresql/internal/functions"
	"incresql/internal/kv"
	"incresql/internal/logical"
	"incresql/internal/optimize"
	"incresql/internal/physical"
	"incresql/internal/session"
	"incresql/internal/sqlfront"
	"incresql/internal/storage"
	"incresql/internal/types"
)

// Runtime owns the process-wide state shared across connections (spec.md
// §5): the storage engine, the catalog (its own single readers-writer
// lock, untouched here), the immutable-after-startup function registry,
// and the connections map kill signals are delivered through.
type Runtime struct {
	store    *kv.Store
	cat      *catalog.Catalog
	registry *functions.Registry
	log      *zap.SugaredLogger

	connMu sync.RWMutex
	conns  map[int64]*Connection
	nextID atomic.Int64
}

// Open starts the key-value engine at cfg, bootstraps the catalog, and
// builds the function registry. log may be nil, in which case a no-op
// logger is used.
func Open(cfg kv.Config, log *zap.SugaredLogger) (*Runtime, error) {
	store, err := kv.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime: open store: %w", err)
	}
	cat, err := catalog.Open(store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("runtime: open catalog: %w", err)
	}
	reg := functions.NewRegistry()
	functions.Register(reg)

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Runtime{
		store:    store,
		cat:      cat,
		registry: reg,
		log:      log,
		conns:    make(map[int64]*Connection),
	}, nil
}

// Close releases the underlying storage engine. Any Connections opened
// against this Runtime must not be used afterwards.
func (r *Runtime) Close() error {
	return r.store.Close()
}

// Connect opens a new Connection with its own Session, registering it in
// the connections map so Kill can reach it by id (spec.md §5).
func (r *Runtime) Connect(defaultDatabase string) *Connection {
	id := r.nextID.Add(1)
	c := &Connection{
		id:      id,
		rt:      r,
		sess:    session.New(defaultDatabase),
		trans:   sqlfront.NewTranslator(r.cat),
		log:     r.log.With("conn", id),
	}
	r.connMu.Lock()
	r.conns[id] = c
	r.connMu.Unlock()
	c.log.Info("connection opened")
	return c
}

// Disconnect removes a Connection from the runtime's live set. Safe to
// call more than once.
func (r *Runtime) Disconnect(c *Connection) {
	r.connMu.Lock()
	delete(r.conns, c.id)
	r.connMu.Unlock()
	c.log.Info("connection closed")
}

// Kill sets the kill flag of the connection with the given id, if still
// live (spec.md §5: "Connections map ... used to deliver kill signals").
// Reports whether a live connection was found.
func (r *Runtime) Kill(id int64) bool {
	r.connMu.RLock()
	c, ok := r.conns[id]
	r.connMu.RUnlock()
	if !ok {
		return false
	}
	c.sess.Kill()
	c.log.Warn("connection killed")
	return true
}

// Catalog exposes the shared catalog, e.g. for introspection tooling.
func (r *Runtime) Catalog() *catalog.Catalog { return r.cat }

// Connection is one client session: its own Session (variables, kill
// flag, current database) plus a dedicated SQL translator, since
// *sqlfront.Translator is not safe for concurrent use (it wraps one
// *parser.Parser instance, matching the teacher's one-analyzer-per-call
// pattern in internal/apply).
type Connection struct {
	id   int64
	rt   *Runtime
	sess *session.Session

	trans *sqlfront.Translator
	log   *zap.SugaredLogger
}

// ID reports the connection's id, as delivered to Runtime.Kill.
func (c *Connection) ID() int64 { return c.id }

// Session exposes the connection's session state (SET/session variables,
// Kill/Killed).
func (c *Connection) Session() *session.Session { return c.sess }

// Close removes this connection from its Runtime.
func (c *Connection) Close() { c.rt.Disconnect(c) }

// Result is the outcome of one executed statement: a row set (Columns/Rows,
// already rendered as client-visible strings per spec.md §6) and
// RowsAffected, the sum of the row frequencies drained (for TableInsert,
// the number of rows it wrote); a statement that only wrote (TableInsert,
// DDL) has no columns.
type Result struct {
	Columns      []string
	Rows         [][]string
	RowsAffected int64
}

// Execute runs every statement in sql in turn (spec.md §5: "statements
// are serialized in submission order" within one connection) and returns
// one Result per statement.
func (c *Connection) Execute(sql string) ([]Result, error) {
	stmts, err := c.trans.Translate(sql, c.sess.Database)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(stmts))
	for _, stmt := range stmts {
		res, err := c.executeOne(stmt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *Connection) executeOne(stmt sqlfront.Statement) (Result, error) {
	if stmt.DDL != nil {
		return c.executeDDL(stmt.DDL)
	}
	return c.executeQuery(stmt.Query)
}

// executeDDL applies a DDL directive directly against the catalog,
// bypassing validate/optimize/lower/exec entirely: DDL has no rows to
// stream (spec.md 4.3).
func (c *Connection) executeDDL(ddl *sqlfront.DDL) (Result, error) {
	switch ddl.Kind {
	case sqlfront.CreateDatabase:
		if err := c.rt.cat.CreateDatabase(ddl.Database); err != nil {
			return Result{}, err
		}
		c.log.Infow("create database", "database", ddl.Database)
	case sqlfront.DropDatabase:
		if err := c.rt.cat.DropDatabase(ddl.Database); err != nil {
			return Result{}, err
		}
		c.log.Infow("drop database", "database", ddl.Database)
	case sqlfront.UseDatabase:
		c.sess.SetVariable("current_database", types.NewText(ddl.Database))
		c.log.Infow("use database", "database", ddl.Database)
	case sqlfront.CreateTable:
		if _, err := c.rt.cat.CreateTable(ddl.Database, ddl.Table, ddl.Columns); err != nil {
			return Result{}, err
		}
		c.log.Infow("create table", "database", ddl.Database, "table", ddl.Table)
	default:
		return Result{}, fmt.Errorf("runtime: unhandled DDL kind %d", ddl.Kind)
	}
	return Result{}, nil
}

// executeQuery drives one logical.Node through
// validate -> optimize -> lower -> build, then to completion, honoring
// the session's kill flag at every row (spec.md §5 cancellation).
// TableInsert statements open a read-write store.Update so their writes
// commit atomically with the scan that fed them; everything else reads
// from a point-in-time snapshot.
func (c *Connection) executeQuery(query logical.Node) (Result, error) {
	validated, err := logical.Validate(query, c.sess, c.rt.cat, c.rt.registry)
	if err != nil {
		return Result{}, err
	}
	optimized := optimize.Optimize(validated, c.sess, c.rt.registry)
	plan := physical.Lower(optimized)
	fields := plan.Fields()

	if writesData(plan) {
		var res Result
		err := c.rt.store.Update(func(txn *kv.Txn) error {
			batch := storage.NewWriteBatch(txn)
			r, runErr := c.drain(plan, fields, txn, batch)
			if runErr != nil {
				return runErr
			}
			res = r
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		return res, nil
	}

	var res Result
	err = c.rt.store.View(func(txn *kv.Txn) error {
		r, runErr := c.drain(plan, fields, txn, nil)
		if runErr != nil {
			return runErr
		}
		res = r
		return nil
	})
	return res, err
}

// writesData reports whether plan contains a TableInsert anywhere, the
// only physical node that mutates storage (spec.md 4.8).
func writesData(n physical.Node) bool {
	if _, ok := n.(*physical.TableInsert); ok {
		return true
	}
	for _, child := range n.Children() {
		if writesData(child) {
			return true
		}
	}
	return false
}

// drain builds the executor tree and pulls it to exhaustion, rendering
// rows as they arrive (spec.md §6) or counting them for a write-only
// statement.
func (c *Connection) drain(plan physical.Node, fields []logical.Field, txn *kv.Txn, batch *storage.WriteBatch) (Result, error) {
	ex, err := exec.Build(plan, c.sess, txn, batch)
	if err != nil {
		return Result{}, err
	}

	res := Result{Columns: fieldNames(fields)}
	projects := len(fields) > 0 || ex.ColumnCount() > 0
	for {
		if c.sess.Killed() {
			return Result{}, exec.ErrKilled("execute")
		}
		row, freq, ok, err := exec.Next(ex)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
		if freq <= 0 {
			continue
		}
		if projects {
			// A row with freq N represents N occurrences in the result bag
			// (spec.md 3 invariant 3): a plain scan of a table holding two
			// equal literal inserts nets to one stored tuple with freq 2,
			// and that multiplicity must still render as two result rows.
			// Grouped output always carries freq 1 (aggregation already
			// folded the multiplicity into the aggregate value), so this
			// loop runs once there.
			rendered := renderRow(row, fields)
			for i := int64(0); i < int64(freq); i++ {
				res.Rows = append(res.Rows, rendered)
			}
		}
		res.RowsAffected += int64(freq)
	}
	if ins, ok := ex.(*exec.TableInsertExec); ok {
		res.RowsAffected = int64(ins.RowsWritten())
	}
	return res, nil
}

func fieldNames(fields []logical.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Alias
	}
	return names
}

func renderRow(row types.Row, fields []logical.Field) []string {
	out := make([]string, len(row))
	for i, d := range row {
		typ := types.TText
		if i < len(fields) {
			typ = fields[i].Type
		}
		out[i] = sqlfront.RenderValue(d, typ)
	}
	return out
}
