package storage

import (
	"testing"

	"incresql/internal/kv"
	"incresql/internal/types"
)

func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.Open(kv.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func intSchema() types.Schema {
	return types.Schema{
		{Name: "a", Type: types.TInteger},
		{Name: "b", Type: types.TInteger},
	}
}

// TestRoundTripInsertThenRetract exercises spec.md 8's round-trip
// invariant: inserting a row at ts then scanning at ts yields it once,
// and retracting it at ts+1 makes it invisible at ts+1.
func TestRoundTripInsertThenRetract(t *testing.T) {
	store := openTestStore(t)
	table := NewTable(store, 10, intSchema(), 1, []types.SortOrder{types.Ascending})

	row := types.Row{types.NewInteger(7), types.NewInteger(42)}

	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, row, 100, 1)
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := store.View(func(txn *kv.Txn) error {
		it, err := table.FullScan(txn, 100)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		got, freq, ok := it.Get()
		if !ok {
			t.Fatal("expected one visible row at ts=100")
		}
		if freq != 1 {
			t.Fatalf("expected freq 1, got %d", freq)
		}
		if !got[0].Equal(row[0]) || !got[1].Equal(row[1]) {
			t.Fatalf("row mismatch: got %v want %v", got, row)
		}
		if err := it.Advance(); err != nil {
			return err
		}
		if _, _, ok := it.Get(); ok {
			t.Fatal("expected exactly one row")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, row, 101, -1)
	}); err != nil {
		t.Fatalf("write retract: %v", err)
	}

	err = store.View(func(txn *kv.Txn) error {
		it, err := table.FullScan(txn, 101)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		if _, _, ok := it.Get(); ok {
			t.Fatal("expected no visible rows after retraction")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFullScanVisibilityAtEarlierTimestamp(t *testing.T) {
	store := openTestStore(t)
	table := NewTable(store, 12, intSchema(), 1, []types.SortOrder{types.Ascending})

	row := types.Row{types.NewInteger(1), types.NewInteger(2)}
	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, row, 50, 1)
	}); err != nil {
		t.Fatal(err)
	}

	err := store.View(func(txn *kv.Txn) error {
		it, err := table.FullScan(txn, 10)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		if _, _, ok := it.Get(); ok {
			t.Fatal("row written at ts=50 should not be visible at ts=10")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSystemPointLookup(t *testing.T) {
	store := openTestStore(t)
	table := NewTable(store, 14, intSchema(), 1, []types.SortOrder{types.Ascending})

	row := types.Row{types.NewInteger(5), types.NewInteger(99)}
	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, row, 1, 1)
	}); err != nil {
		t.Fatal(err)
	}

	err := store.View(func(txn *kv.Txn) error {
		got, ok, err := table.SystemPointLookup(txn, types.Row{types.NewInteger(5)})
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected to find row")
		}
		if !got[1].Equal(types.NewInteger(99)) {
			t.Fatalf("got %v", got)
		}
		_, ok, err = table.SystemPointLookup(txn, types.Row{types.NewInteger(6)})
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("expected no row for missing pk")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMultipleVersionsNewestWins(t *testing.T) {
	store := openTestStore(t)
	table := NewTable(store, 16, intSchema(), 1, []types.SortOrder{types.Ascending})

	pk := types.NewInteger(1)
	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, types.Row{pk, types.NewInteger(1)}, 10, 1)
	}); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(store, func(b *WriteBatch) error {
		return b.WriteTuple(table, types.Row{pk, types.NewInteger(2)}, 20, 1)
	}); err != nil {
		t.Fatal(err)
	}

	err := store.View(func(txn *kv.Txn) error {
		it, err := table.FullScan(txn, 20)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		got, _, ok := it.Get()
		if !ok {
			t.Fatal("expected a visible row")
		}
		if !got[1].Equal(types.NewInteger(2)) {
			t.Fatalf("expected newest version (b=2), got %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.View(func(txn *kv.Txn) error {
		it, err := table.FullScan(txn, 10)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		got, _, ok := it.Get()
		if !ok {
			t.Fatal("expected a visible row at ts=10")
		}
		if !got[1].Equal(types.NewInteger(1)) {
			t.Fatalf("expected version as of ts=10 (b=1), got %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
