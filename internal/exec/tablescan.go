package exec

import (
	"incresql/internal/kv"
	"incresql/internal/storage"
	"incresql/internal/types"
)

// TableScanExec wraps a storage.TupleIter over the full table at a fixed
// point-in-time timestamp (spec.md 4.8).
type TableScanExec struct {
	it   *storage.TupleIter
	cols int

	row  types.Row
	freq types.Frequency
	ok   bool
}

func NewTableScan(txn *kv.Txn, table *storage.Table, ts storage.LogicalTimestamp) (*TableScanExec, error) {
	it, err := table.FullScan(txn, ts)
	if err != nil {
		return nil, errStorage("table_scan", err)
	}
	return &TableScanExec{it: it, cols: len(table.Schema())}, nil
}

func (t *TableScanExec) Advance() error {
	t.ok = false
	if err := t.it.Advance(); err != nil {
		return errStorage("table_scan", err)
	}
	row, freq, ok := t.it.Get()
	if !ok {
		return nil
	}
	t.row, t.freq, t.ok = row, freq, true
	return nil
}

func (t *TableScanExec) Get() (types.Row, types.Frequency, bool) {
	if !t.ok {
		return nil, 0, false
	}
	return t.row, t.freq, true
}

func (t *TableScanExec) ColumnCount() int { return t.cols }

// Close releases the underlying engine iterator.
func (t *TableScanExec) Close() { t.it.Close() }
