// Package config reads the engine's bootstrap TOML file: where the
// storage engine keeps its files, which database a new connection
// starts in, and the session limits the runtime enforces. Grounded on
// internal/parser/toml/parser.go's schemaFile/toml.NewDecoder pattern,
// the teacher's only other use of github.com/BurntSushi/toml, retargeted
// from a schema document to process configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level bootstrap document, e.g.:
//
//	[storage]
//	data_dir = "/var/lib/incresql"
//	in_memory = false
//
//	[session]
//	default_database = "default"
//	statement_timeout = "30s"
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Session SessionConfig `toml:"session"`
}

// StorageConfig controls the underlying key-value engine (internal/kv).
type StorageConfig struct {
	DataDir  string `toml:"data_dir"`
	InMemory bool   `toml:"in_memory"`
}

// SessionConfig bounds what a new Connection starts with and how long a
// statement may run before an external watchdog kills it (spec.md §5:
// "Timeouts are implemented by an external watchdog setting the kill
// flag").
type SessionConfig struct {
	DefaultDatabase  string `toml:"default_database"`
	StatementTimeout string `toml:"statement_timeout"`
	MaxConnections   int    `toml:"max_connections"`
}

// Default returns the configuration used when no file is supplied: an
// in-memory store (matching internal/kv.Config's own default-to-safe
// behavior), the "default" database, a 30s statement timeout, and no
// connection cap.
func Default() Config {
	return Config{
		Storage: StorageConfig{InMemory: true},
		Session: SessionConfig{
			DefaultDatabase:  "default",
			StatementTimeout: "30s",
		},
	}
}

// Load reads and decodes a TOML config file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a TOML config document from r, filling in Default's
// values for anything left unset.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// StatementTimeoutDuration parses Session.StatementTimeout, falling back
// to 0 (no timeout) if empty.
func (c Config) StatementTimeoutDuration() (time.Duration, error) {
	if c.Session.StatementTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Session.StatementTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: statement_timeout: %w", err)
	}
	return d, nil
}
