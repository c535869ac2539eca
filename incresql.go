// Package incresql is the embeddable public API: open a database,
// start a session against it, and run SQL without touching a cobra
// command or a socket. internal/runtime does the real work; this file
// only narrows its surface to what an embedding Go program needs.
package incresql

import (
	"go.uber.org/zap"

	"incresql/internal/config"
	"incresql/internal/kv"
	"incresql/internal/runtime"
)

// DB is an open engine instance, backed by its own storage engine and
// catalog. Use Session to start a connection against it.
type DB struct {
	rt *runtime.Runtime
}

// Open starts a DB from cfg (internal/config.Config, e.g.
// config.Default() for an in-memory, single-process instance).
func Open(cfg config.Config) (*DB, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	rt, err := runtime.Open(kv.Config{
		Path:     cfg.Storage.DataDir,
		InMemory: cfg.Storage.InMemory,
	}, logger.Sugar())
	if err != nil {
		return nil, err
	}
	return &DB{rt: rt}, nil
}

// Close releases the underlying storage engine. Sessions opened against
// this DB must not be used afterwards.
func (db *DB) Close() error {
	return db.rt.Close()
}

// Session is one client connection: its own session variables, current
// database, and kill flag (spec.md §5).
type Session struct {
	conn *runtime.Connection
}

// Session starts a new connection, defaulting to database if non-empty
// or "default" otherwise.
func (db *DB) Session(database string) *Session {
	if database == "" {
		database = "default"
	}
	return &Session{conn: db.rt.Connect(database)}
}

// Close ends the session.
func (s *Session) Close() {
	s.conn.Close()
}

// ID reports the connection id, usable with DB.Kill.
func (s *Session) ID() int64 {
	return s.conn.ID()
}

// Execute runs sql (one or more ;-separated statements) against this
// session and returns one runtime.Result per statement.
func (s *Session) Execute(sql string) ([]runtime.Result, error) {
	return s.conn.Execute(sql)
}

// Kill cooperatively cancels the session with the given connection id,
// wherever it is currently executing (spec.md §5).
func (db *DB) Kill(sessionID int64) bool {
	return db.rt.Kill(sessionID)
}
