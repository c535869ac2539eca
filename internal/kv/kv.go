// Package kv wraps BadgerDB as the ordered key-value engine with snapshot
// reads and atomic write batches that the storage layer is built on (spec.md
// 4.2: "Wraps an ordered key-value store with snapshot reads and atomic
// write batches").
package kv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Store is a thin handle over a *badger.DB. Construction takes no
// responsibility beyond opening the engine; all key/value layout decisions
// belong to the storage package above it.
type Store struct {
	db *badger.DB
}

// Config controls how the underlying engine is opened.
type Config struct {
	// Path is where the engine persists its files. Ignored if InMemory.
	Path string
	// InMemory runs the engine with no on-disk footprint, for tests and
	// single-shot CLI invocations.
	InMemory bool
}

// Open starts the key-value engine at cfg.Path (or purely in memory).
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = "" // badger refuses in-memory mode with a directory set
	}
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithCompression(options.Snappy)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kv: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the engine's resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn against a read-only snapshot. Writers never block readers.
func (s *Store) View(fn func(txn *Txn) error) error {
	return s.db.View(func(t *badger.Txn) error {
		return fn(&Txn{txn: t})
	})
}

// Update runs fn inside a read-write transaction, committing all of its
// writes atomically if fn returns nil, discarding them otherwise.
func (s *Store) Update(fn func(txn *Txn) error) error {
	return s.db.Update(func(t *badger.Txn) error {
		return fn(&Txn{txn: t})
	})
}

// Txn is a single read or read-write transaction.
type Txn struct {
	txn *badger.Txn
}

// Get fetches the value stored at key, returning ErrKeyNotFound if absent.
func (t *Txn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	return item.ValueCopy(nil)
}

// Set writes key -> value, visible to other transactions only once the
// enclosing Update's closure returns without error.
func (t *Txn) Set(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return fmt.Errorf("kv: set: %w", err)
	}
	return nil
}

// Delete removes key.
func (t *Txn) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

// Iterator yields key/value pairs over a forward, prefix-bounded range.
type Iterator struct {
	it       *badger.Iterator
	upper    []byte
	prefetch bool
}

// IterOptions bounds a scan to [lower, upper) in key order. A nil bound is
// open on that side.
type IterOptions struct {
	Lower []byte
	Upper []byte
}

// NewIterator opens a forward iterator over opts' range. The caller must
// call Close when done.
func (t *Txn) NewIterator(opts IterOptions) *Iterator {
	badgerOpts := badger.DefaultIteratorOptions
	badgerOpts.PrefetchValues = true
	it := t.txn.NewIterator(badgerOpts)
	iter := &Iterator{it: it, upper: opts.Upper}
	if opts.Lower != nil {
		it.Seek(opts.Lower)
	} else {
		it.Rewind()
	}
	return iter
}

// Valid reports whether the iterator is positioned at an entry within
// bounds.
func (it *Iterator) Valid() bool {
	if !it.it.Valid() {
		return false
	}
	if it.upper != nil {
		key := it.it.Item().Key()
		if bytesCompare(key, it.upper) >= 0 {
			return false
		}
	}
	return true
}

// Next advances the iterator.
func (it *Iterator) Next() { it.it.Next() }

// Close releases the iterator.
func (it *Iterator) Close() { it.it.Close() }

// Key returns a copy of the current entry's key, still valid after Next or Close.
func (it *Iterator) Key() []byte {
	return it.it.Item().KeyCopy(nil)
}

// Value returns a copy of the current entry's value, still valid after Next or Close.
func (it *Iterator) Value() ([]byte, error) {
	return it.it.Item().ValueCopy(nil)
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = fmt.Errorf("kv: key not found")
