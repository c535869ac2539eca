// Package storage implements the versioned tuple store described in
// spec.md 4.2: tables are handles over a table-id prefixed region of the
// key-value engine, with rows stored as sortable-encoded primary keys
// versioned by a bitwise-inverted logical timestamp, and a streaming,
// pull-based scan contract matching the one the executor layer uses.
package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"incresql/internal/codec"
	"incresql/internal/kv"
	"incresql/internal/types"
)

// LogicalTimestamp is milliseconds since the Unix epoch. TimestampMax is
// the sentinel meaning "read the latest version."
type LogicalTimestamp = int64

const TimestampMax LogicalTimestamp = 1<<63 - 1

// Now returns the current wall-clock logical timestamp (spec.md 5: "logical
// timestamps come from wall clock").
func Now() LogicalTimestamp {
	return time.Now().UnixMilli()
}

// Error is the single StorageError kind the spec calls for (spec.md 7):
// underlying key-value failures surface uniformly as StorageError.KeyValue.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Table is a pure handle: constructing one does no I/O (spec.md 4.2).
type Table struct {
	store    *kv.Store
	id       uint32
	schema   types.Schema
	pkLen    int
	pkOrders []types.SortOrder
}

// NewTable constructs a handle over table id within store. pkLen is the
// number of leading schema columns that form the primary key; pkOrders
// gives a sort order per PK column (its last order repeats if shorter).
func NewTable(store *kv.Store, id uint32, schema types.Schema, pkLen int, pkOrders []types.SortOrder) *Table {
	return &Table{store: store, id: id, schema: schema, pkLen: pkLen, pkOrders: pkOrders}
}

func (t *Table) ID() uint32          { return t.id }
func (t *Table) Schema() types.Schema { return t.schema }
func (t *Table) PKLen() int          { return t.pkLen }

func (t *Table) prefix() []byte {
	return codec.TableIDPrefix(t.id)
}

func (t *Table) encodeKey(pk types.Row, ts LogicalTimestamp) []byte {
	buf := t.prefix()
	buf = codec.EncodeTuple(pk, t.pkOrders, buf)
	buf = append(buf, codec.InvertedTimestamp(ts)...)
	return buf
}

func (t *Table) encodeValue(nonPK types.Row, freq types.Frequency) []byte {
	orders := []types.SortOrder{types.Ascending}
	buf := codec.EncodeTuple(nonPK, orders, nil)
	freqBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(freqBuf, uint32(freq))
	return append(buf, freqBuf...)
}

func (t *Table) decodeValue(raw []byte) (types.Row, types.Frequency, error) {
	nonPKLen := len(t.schema) - t.pkLen
	if len(raw) < 4 {
		return nil, 0, fmt.Errorf("storage: truncated value")
	}
	body, freqBuf := raw[:len(raw)-4], raw[len(raw)-4:]
	row, rest, err := codec.DecodeTuple(body, nonPKLen)
	if err != nil {
		return nil, 0, err
	}
	if len(rest) != 0 {
		return nil, 0, fmt.Errorf("storage: trailing bytes in value")
	}
	freq := types.Frequency(binary.BigEndian.Uint32(freqBuf))
	return row, freq, nil
}

// decodeKeyPK strips the table prefix and inverted timestamp, decoding the
// PK columns plus the version's logical timestamp.
func (t *Table) decodeKeyPK(key []byte) (types.Row, LogicalTimestamp, error) {
	if len(key) < 4+8 {
		return nil, 0, fmt.Errorf("storage: truncated key")
	}
	body := key[4 : len(key)-8]
	tsBuf := key[len(key)-8:]
	pk, rest, err := codec.DecodeTuple(body, t.pkLen)
	if err != nil {
		return nil, 0, err
	}
	if len(rest) != 0 {
		return nil, 0, fmt.Errorf("storage: trailing bytes in key")
	}
	ts := codec.DecodeInvertedTimestamp(tsBuf)
	return pk, ts, nil
}

// TupleIter streams (row, freq) pairs visible at a fixed timestamp. Rows
// returned by Get are borrowed and invalidated by the next Advance (spec.md
// 4.2, 9).
type TupleIter struct {
	table *Table
	it    *kv.Iterator
	atTS  LogicalTimestamp

	curRow  types.Row
	curFreq types.Frequency
	valid   bool
	done    bool
}

// Advance positions the iterator at the next visible (row, freq) pair,
// skipping any PK whose newest version at or before atTS nets to freq 0.
func (ti *TupleIter) Advance() error {
	ti.valid = false
	for ti.it.Valid() {
		key := ti.it.Key()
		pk, ts, err := ti.table.decodeKeyPK(key)
		if err != nil {
			return wrap("advance", err)
		}

		// Skip forward to the newest version <= atTS for this PK.
		var chosenValue []byte
		found := false
		for ti.it.Valid() {
			k2 := ti.it.Key()
			pk2, ts2, err := ti.table.decodeKeyPK(k2)
			if err != nil {
				return wrap("advance", err)
			}
			if !rowEqual(pk2, pk) {
				break
			}
			if !found && ts2 <= ti.atTS {
				val, err := ti.it.Value()
				if err != nil {
					return wrap("advance", err)
				}
				chosenValue = val
				found = true
			}
			ti.it.Next()
		}

		if !found {
			continue
		}
		row, freq, err := ti.table.decodeValue(chosenValue)
		if err != nil {
			return wrap("advance", err)
		}
		if freq == 0 {
			continue
		}
		full := make(types.Row, 0, len(pk)+len(row))
		full = append(full, pk...)
		full = append(full, row...)
		ti.curRow = full
		ti.curFreq = freq
		ti.valid = true
		return nil
	}
	ti.done = true
	return nil
}

func rowEqual(a, b types.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Get returns the current row and frequency, valid until the next Advance.
// The second return is false once the iterator is exhausted.
func (ti *TupleIter) Get() (types.Row, types.Frequency, bool) {
	if !ti.valid {
		return nil, 0, false
	}
	return ti.curRow, ti.curFreq, true
}

// Close releases the underlying engine iterator.
func (ti *TupleIter) Close() { ti.it.Close() }

// RangeScan lazily yields the most recent version <= atTS for each PK
// within [lower, upper). A nil bound is open on that side. Call Advance
// before the first Get.
func (t *Table) RangeScan(txn *kv.Txn, lower, upper types.Row, atTS LogicalTimestamp) (*TupleIter, error) {
	opts := kv.IterOptions{Lower: t.prefix()}
	if lower != nil {
		opts.Lower = append(t.prefix(), codec.EncodeTuple(lower, t.pkOrders, nil)...)
	}
	if upper != nil {
		opts.Upper = append(t.prefix(), codec.EncodeTuple(upper, t.pkOrders, nil)...)
	} else {
		opts.Upper = codec.TableIDPrefix(t.id + 1)
	}
	it := txn.NewIterator(opts)
	return &TupleIter{table: t, it: it, atTS: atTS}, nil
}

// FullScan is RangeScan(nil, nil, atTS).
func (t *Table) FullScan(txn *kv.Txn, atTS LogicalTimestamp) (*TupleIter, error) {
	return t.RangeScan(txn, nil, nil, atTS)
}

// SystemPointLookup fetches the row at the latest timestamp for the given
// PK, used by the catalog to resolve a single entity without a full scan.
// It stops as soon as it has inspected every stored version of pk, rather
// than falling through to the next PK in key order when pk's newest
// version nets to freq 0.
func (t *Table) SystemPointLookup(txn *kv.Txn, pk types.Row) (types.Row, bool, error) {
	lower := append(t.prefix(), codec.EncodeTuple(pk, t.pkOrders, nil)...)
	it := txn.NewIterator(kv.IterOptions{Lower: lower})
	defer it.Close()

	var chosenValue []byte
	found := false
	for it.Valid() {
		key := it.Key()
		pk2, ts2, err := t.decodeKeyPK(key)
		if err != nil {
			return nil, false, wrap("system_point_lookup", err)
		}
		if !rowEqual(pk2, pk) {
			break
		}
		if !found && ts2 <= TimestampMax {
			val, err := it.Value()
			if err != nil {
				return nil, false, wrap("system_point_lookup", err)
			}
			chosenValue = val
			found = true
		}
		it.Next()
	}
	if !found {
		return nil, false, nil
	}
	nonPK, freq, err := t.decodeValue(chosenValue)
	if err != nil {
		return nil, false, wrap("system_point_lookup", err)
	}
	if freq == 0 {
		return nil, false, nil
	}
	full := make(types.Row, 0, len(pk)+len(nonPK))
	full = append(full, pk...)
	full = append(full, nonPK...)
	return full, true, nil
}

// WriteBatch accumulates one atomic set of tuple writes (spec.md 4.2:
// "runs the closure, committing or discarding all writes atomically").
type WriteBatch struct {
	txn *kv.Txn
}

// latestFreq returns the freq stored in the newest existing version of pk
// (at any timestamp), or 0 if pk has never been written. Keys are ordered
// by PK then inverted timestamp, so the first entry at or after the PK's
// own prefix is always its newest version.
func (t *Table) latestFreq(txn *kv.Txn, pk types.Row) (types.Frequency, error) {
	lower := append(t.prefix(), codec.EncodeTuple(pk, t.pkOrders, nil)...)
	it := txn.NewIterator(kv.IterOptions{Lower: lower})
	defer it.Close()
	if !it.Valid() {
		return 0, nil
	}
	pk2, _, err := t.decodeKeyPK(it.Key())
	if err != nil {
		return 0, wrap("latest_freq", err)
	}
	if !rowEqual(pk2, pk) {
		return 0, nil
	}
	val, err := it.Value()
	if err != nil {
		return 0, wrap("latest_freq", err)
	}
	_, freq, err := t.decodeValue(val)
	if err != nil {
		return 0, wrap("latest_freq", err)
	}
	return freq, nil
}

// WriteTuple appends one versioned row holding the PK's net frequency as
// of ts: the freq argument is a delta against whatever was last written
// for this PK (at any earlier timestamp, including one written earlier in
// the same batch), not an absolute value. This is spec.md 3's invariant 3
// ("that version's net freq") applied to writes: two VALUES rows with the
// same primary key in one INSERT both contribute to a single stored net
// freq instead of the later one shadowing the earlier one, and a
// retraction (freq = -1) nets an existing +1 down to 0 rather than
// surfacing as its own visible negative-freq version.
func (b *WriteBatch) WriteTuple(table *Table, row types.Row, ts LogicalTimestamp, freq types.Frequency) error {
	if len(row) != len(table.schema) {
		return fmt.Errorf("storage: row arity %d does not match schema arity %d", len(row), len(table.schema))
	}
	pk := row[:table.pkLen]
	nonPK := row[table.pkLen:]

	existing, err := table.latestFreq(b.txn, pk)
	if err != nil {
		return wrap("write_tuple", err)
	}

	key := table.encodeKey(pk, ts)
	value := table.encodeValue(nonPK, existing+freq)
	return wrap("write_tuple", b.txn.Set(key, value))
}

// AtomicWrite runs fn with a fresh WriteBatch, committing all of its writes
// atomically if fn returns nil.
func AtomicWrite(store *kv.Store, fn func(batch *WriteBatch) error) error {
	return wrap("atomic_write", store.Update(func(txn *kv.Txn) error {
		return fn(&WriteBatch{txn: txn})
	}))
}

// NewWriteBatch wraps an already-open read-write transaction as a
// WriteBatch, for callers (internal/exec's TableInsert) that drive the
// enclosing store.Update themselves instead of going through
// AtomicWrite's closure form.
func NewWriteBatch(txn *kv.Txn) *WriteBatch {
	return &WriteBatch{txn: txn}
}
