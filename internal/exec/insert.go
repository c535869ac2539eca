package exec

import (
	"incresql/internal/storage"
	"incresql/internal/types"
)

// TableInsertExec drains its source and writes each (row, freq) into
// Table inside the caller-provided WriteBatch, emitting no rows (spec.md
// 4.8). Every row of one INSERT statement is written at the same logical
// timestamp (storage.Now(), captured once at construction): WriteTuple
// accumulates the net frequency per primary key (spec.md 3 invariant 3)
// rather than letting a later version shadow an earlier one, so two
// VALUES rows with identical column values both add to a single stored
// tuple's net freq instead of the second shadowing the first.
type TableInsertExec struct {
	table  *storage.Table
	source Executor
	batch  *storage.WriteBatch

	ts   storage.LogicalTimestamp
	n    int
	done bool
}

func NewTableInsert(table *storage.Table, source Executor, batch *storage.WriteBatch) *TableInsertExec {
	return &TableInsertExec{table: table, source: source, batch: batch, ts: storage.Now()}
}

func (t *TableInsertExec) Advance() error {
	if t.done {
		return nil
	}
	t.done = true
	for {
		row, freq, ok, err := Next(t.source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := t.batch.WriteTuple(t.table, row.IntoStatic(), t.ts, freq); err != nil {
			return errStorage("table_insert", err)
		}
		t.n++
	}
}

func (t *TableInsertExec) Get() (types.Row, types.Frequency, bool) { return nil, 0, false }

func (t *TableInsertExec) ColumnCount() int { return 0 }

// RowsWritten reports how many tuples this insert has written so far,
// for callers (internal/runtime) that report an affected-row count back
// to the client even though this executor emits no rows of its own.
func (t *TableInsertExec) RowsWritten() int { return t.n }
