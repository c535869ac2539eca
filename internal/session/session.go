// Package session implements the per-connection state spec.md §5
// describes: session variables, a point-in-time read timestamp, and a
// cooperative kill flag. *Session satisfies functions.EvalContext
// structurally so expression evaluation can read session variables
// (e.g. current_database) without internal/functions importing this
// package back.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"incresql/internal/types"
)

// Session holds the mutable state of one client connection.
type Session struct {
	mu   sync.RWMutex
	vars map[string]types.Datum

	killed atomic.Bool

	// Database is the session's current database, consulted by
	// internal/sqlfront when a table reference carries no explicit
	// qualifier (spec.md §6).
	Database string
}

// New returns a Session with the built-in session variables set to
// their defaults and current_database set to defaultDatabase.
func New(defaultDatabase string) *Session {
	s := &Session{vars: make(map[string]types.Datum), Database: defaultDatabase}
	s.vars["current_database"] = types.NewText(defaultDatabase)
	return s
}

// NowMillis implements functions.EvalContext; it is the wall-clock time
// offered to any eval_scalar body that needs it.
func (s *Session) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Variable implements functions.EvalContext, returning a session
// variable's current value.
func (s *Session) Variable(name string) (types.Datum, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// SetVariable updates a session variable (SET statement support).
func (s *Session) SetVariable(name string, value types.Datum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
	if name == "current_database" {
		if text, ok := value.AsText(); ok {
			s.Database = text
		}
	}
}

// Kill marks the session for cooperative cancellation; the runtime checks
// Killed between the root executor's output rows and unwinds with
// exec.ErrKilled.
func (s *Session) Kill() { s.killed.Store(true) }

// Killed implements exec.KillChecker.
func (s *Session) Killed() bool { return s.killed.Load() }
