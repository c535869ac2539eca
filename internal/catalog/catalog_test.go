package catalog

import (
	"testing"

	"incresql/internal/kv"
	"incresql/internal/storage"
	"incresql/internal/types"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	store, err := kv.Open(kv.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cat, err := Open(store)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return cat
}

// TestBootstrapCreatesDefaultDatabase covers spec.md 8 seed scenario 2:
// SELECT * FROM incresql.databases WHERE name = "default" finds one row.
func TestBootstrapCreatesDefaultDatabase(t *testing.T) {
	cat := openTestCatalog(t)
	tbl, err := cat.Table("incresql", "databases")
	if err != nil {
		t.Fatalf("resolve incresql.databases: %v", err)
	}

	var found bool
	err = cat.store.View(func(txn *kv.Txn) error {
		it, err := tbl.FullScan(txn, storage.TimestampMax)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			if err := it.Advance(); err != nil {
				return err
			}
			row, _, ok := it.Get()
			if !ok {
				break
			}
			name, _ := row[0].AsText()
			if name == "default" {
				found = true
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected default database to exist after bootstrap")
	}
}

func TestCreateDatabaseThenDrop(t *testing.T) {
	cat := openTestCatalog(t)

	if err := cat.CreateDatabase("abc"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cat.CreateDatabase("abc"); err == nil {
		t.Fatal("expected DatabaseAlreadyExists on second create")
	} else if cerr, ok := err.(*Error); !ok || cerr.Kind != DatabaseAlreadyExists {
		t.Fatalf("expected DatabaseAlreadyExists, got %v", err)
	}

	if err := cat.DropDatabase("abc"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := cat.DropDatabase("abc"); err == nil {
		t.Fatal("expected DatabaseNotFound on second drop")
	}
}

func TestCreateTableThenResolve(t *testing.T) {
	cat := openTestCatalog(t)

	cols := []Column{{Name: "a", Type: types.TInteger}}
	id, err := cat.CreateTable("default", "test", cols)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if id%2 != 0 {
		t.Fatalf("expected even table id, got %d", id)
	}

	tbl, err := cat.Table("default", "test")
	if err != nil {
		t.Fatalf("resolve table: %v", err)
	}
	if tbl.ID() != id {
		t.Fatalf("expected id %d, got %d", id, tbl.ID())
	}
	if len(tbl.Schema()) != 1 || tbl.Schema()[0].Name != "a" {
		t.Fatalf("unexpected schema: %v", tbl.Schema())
	}

	if _, err := cat.CreateTable("default", "test", cols); err == nil {
		t.Fatal("expected TableAlreadyExists")
	}
	if _, err := cat.Table("default", "nope"); err == nil {
		t.Fatal("expected TableNotFound")
	}
	if _, err := cat.CreateTable("nosuchdb", "t2", cols); err == nil {
		t.Fatal("expected DatabaseNotFound")
	}
}

func TestDropDatabaseNotEmpty(t *testing.T) {
	cat := openTestCatalog(t)
	if err := cat.CreateDatabase("abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.CreateTable("abc", "t", []Column{{Name: "a", Type: types.TInteger}}); err != nil {
		t.Fatal(err)
	}
	err := cat.DropDatabase("abc")
	if err == nil {
		t.Fatal("expected DatabaseNotEmpty")
	}
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != DatabaseNotEmpty {
		t.Fatalf("expected DatabaseNotEmpty, got %v", err)
	}
}
