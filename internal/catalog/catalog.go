// Package catalog implements the system tables describing databases and
// tables (spec.md 4.3): bootstrap of the three system tables plus the
// "default" database, and the create/drop/table operations layered on
// top of internal/storage.
package catalog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"incresql/internal/kv"
	"incresql/internal/storage"
	"incresql/internal/types"
)

const (
	PrefixMetadataTableID uint32 = 0
	DatabasesTableID      uint32 = 2
	TablesTableID         uint32 = 4
)

// maxTableIDProbes bounds the +2 linear probe for table-id generation
// (spec.md 9, Open Question 1: "treat this as an operational fault and
// fail TableAlreadyExists after a bounded probe").
const maxTableIDProbes = 1 << 20

// Column is a user-facing (name, type) pair, as accepted by CreateTable.
type Column struct {
	Name string
	Type types.DataType
}

// Catalog owns the lifecycle and naming of every database object. All
// mutating operations are serialized by mu, a single readers-writer lock
// over the in-memory view (spec.md 5): DDL takes the write side, read
// paths take the read side only for the duration of name resolution.
type Catalog struct {
	mu sync.RWMutex

	store *kv.Store

	prefixMetadata *storage.Table
	databases      *storage.Table
	tables         *storage.Table
}

func prefixMetadataSchema() types.Schema {
	return types.Schema{
		{Name: "table_id", Type: types.TBigInt},
		{Name: "column_len", Type: types.TInteger},
		{Name: "pks_sorts", Type: types.TJson},
	}
}

func databasesSchema() types.Schema {
	return types.Schema{{Name: "name", Type: types.TText}}
}

func tablesSchema() types.Schema {
	return types.Schema{
		{Name: "database_name", Type: types.TText},
		{Name: "name", Type: types.TText},
		{Name: "table_id", Type: types.TBigInt},
		{Name: "columns", Type: types.TJson},
		{Name: "system", Type: types.TBoolean},
	}
}

// Open constructs the catalog's system table handles (pure, per spec.md
// 4.2) and bootstraps them on first use.
func Open(store *kv.Store) (*Catalog, error) {
	c := &Catalog{
		store:          store,
		prefixMetadata: storage.NewTable(store, PrefixMetadataTableID, prefixMetadataSchema(), 1, []types.SortOrder{types.Ascending}),
		databases:      storage.NewTable(store, DatabasesTableID, databasesSchema(), 1, []types.SortOrder{types.Ascending}),
		tables:         storage.NewTable(store, TablesTableID, tablesSchema(), 2, []types.SortOrder{types.Ascending, types.Ascending}),
	}
	if err := c.bootstrap(); err != nil {
		return nil, err
	}
	return c, nil
}

// bootstrap creates the system-table rows and the "default" database if
// they are not already present (idempotent across process restarts
// against the same persistent store).
func (c *Catalog) bootstrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exists bool
	err := c.store.View(func(txn *kv.Txn) error {
		_, ok, err := c.databases.SystemPointLookup(txn, types.Row{types.NewText("default")})
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ts := storage.Now()
	systemTables := []struct {
		table *storage.Table
		cols  []Column
	}{
		{c.prefixMetadata, schemaToColumns(prefixMetadataSchema())},
		{c.databases, schemaToColumns(databasesSchema())},
		{c.tables, schemaToColumns(tablesSchema())},
	}

	return storage.AtomicWrite(c.store, func(b *storage.WriteBatch) error {
		for _, st := range systemTables {
			if err := writeTableMetadata(b, c.tables, c.prefixMetadata, "incresql", tableDisplayName(st.table.ID()), st.table, st.cols, ts, true); err != nil {
				return err
			}
		}
		return b.WriteTuple(c.databases, types.Row{types.NewText("default")}, ts, 1)
	})
}

func tableDisplayName(id uint32) string {
	switch id {
	case PrefixMetadataTableID:
		return "prefix_metadata"
	case DatabasesTableID:
		return "databases"
	case TablesTableID:
		return "tables"
	default:
		return fmt.Sprintf("table_%d", id)
	}
}

func schemaToColumns(s types.Schema) []Column {
	cols := make([]Column, len(s))
	for i, c := range s {
		cols[i] = Column{Name: c.Name, Type: c.Type}
	}
	return cols
}

func writeTableMetadata(b *storage.WriteBatch, tablesTbl, prefixTbl *storage.Table, db, name string, target *storage.Table, cols []Column, ts storage.LogicalTimestamp, system bool) error {
	columnsJSON, err := encodeColumns(cols)
	if err != nil {
		return err
	}
	pkOrders := make([]bool, target.PKLen())
	pksJSON, err := json.Marshal(pkOrders)
	if err != nil {
		return err
	}

	row := types.Row{
		types.NewText(db),
		types.NewText(name),
		types.NewBigInt(int64(target.ID())),
		types.NewText(string(columnsJSON)),
		types.NewBoolean(system),
	}
	if err := b.WriteTuple(tablesTbl, row, ts, 1); err != nil {
		return err
	}

	prefixRow := types.Row{
		types.NewBigInt(int64(target.ID())),
		types.NewInteger(int32(len(cols))),
		types.NewText(string(pksJSON)),
	}
	return b.WriteTuple(prefixTbl, prefixRow, ts, 1)
}

type jsonColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func encodeColumns(cols []Column) ([]byte, error) {
	out := make([]jsonColumn, len(cols))
	for i, c := range cols {
		out[i] = jsonColumn{Name: c.Name, Type: c.Type.String()}
	}
	return json.Marshal(out)
}

func decodeColumns(raw []byte) ([]Column, error) {
	var parsed []jsonColumn
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("catalog: decode columns: %w", err)
	}
	cols := make([]Column, len(parsed))
	for i, p := range parsed {
		dt, err := types.ParseDataType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode columns: %w", err)
		}
		cols[i] = Column{Name: p.Name, Type: dt}
	}
	return cols, nil
}

// CreateDatabase registers a new database. DatabaseAlreadyExists if name
// is already present.
func (c *Catalog) CreateDatabase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.dbExists(name)
	if err != nil {
		return err
	}
	if exists {
		return errDatabaseExists(name)
	}
	return storage.AtomicWrite(c.store, func(b *storage.WriteBatch) error {
		return b.WriteTuple(c.databases, types.Row{types.NewText(name)}, storage.Now(), 1)
	})
}

// DropDatabase removes a database. DatabaseNotFound or DatabaseNotEmpty
// (if it still owns tables) on failure.
func (c *Catalog) DropDatabase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.dbExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return errDatabaseNotFound(name)
	}
	empty, err := c.dbEmpty(name)
	if err != nil {
		return err
	}
	if !empty {
		return errDatabaseNotEmpty(name)
	}
	return storage.AtomicWrite(c.store, func(b *storage.WriteBatch) error {
		return b.WriteTuple(c.databases, types.Row{types.NewText(name)}, storage.Now(), -1)
	})
}

func (c *Catalog) dbExists(name string) (bool, error) {
	var exists bool
	err := c.store.View(func(txn *kv.Txn) error {
		_, ok, err := c.databases.SystemPointLookup(txn, types.Row{types.NewText(name)})
		exists = ok
		return err
	})
	return exists, err
}

func (c *Catalog) dbEmpty(name string) (bool, error) {
	empty := true
	err := c.store.View(func(txn *kv.Txn) error {
		it, err := c.tables.RangeScan(txn, types.Row{types.NewText(name)}, types.Row{types.NewText(name + "\x00")}, storage.TimestampMax)
		if err != nil {
			return err
		}
		defer it.Close()
		if err := it.Advance(); err != nil {
			return err
		}
		if _, _, ok := it.Get(); ok {
			empty = false
		}
		return nil
	})
	return empty, err
}

// CreateTable registers a new table under database_name, assigning it a
// fresh even table id (spec.md 4.3, 9). TableAlreadyExists if the name is
// taken, DatabaseNotFound if the database does not exist.
func (c *Catalog) CreateTable(databaseName, tableName string, columns []Column) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dbExists, err := c.dbExists(databaseName)
	if err != nil {
		return 0, err
	}
	if !dbExists {
		return 0, errDatabaseNotFound(databaseName)
	}
	tblExists, err := c.tableExists(databaseName, tableName)
	if err != nil {
		return 0, err
	}
	if tblExists {
		return 0, errTableExists(databaseName, tableName)
	}

	id, err := c.generateTableID(tableName)
	if err != nil {
		return 0, err
	}

	pkOrders := make([]types.SortOrder, len(columns))
	schema := make(types.Schema, len(columns))
	for i, col := range columns {
		schema[i] = types.Column{Name: col.Name, Type: col.Type}
		pkOrders[i] = types.Ascending
	}
	target := storage.NewTable(c.store, id, schema, len(columns), pkOrders)

	ts := storage.Now()
	err = storage.AtomicWrite(c.store, func(b *storage.WriteBatch) error {
		return writeTableMetadata(b, c.tables, c.prefixMetadata, databaseName, tableName, target, columns, ts, false)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Catalog) tableExists(databaseName, tableName string) (bool, error) {
	var exists bool
	err := c.store.View(func(txn *kv.Txn) error {
		_, ok, err := c.tables.SystemPointLookup(txn, types.Row{types.NewText(databaseName), types.NewText(tableName)})
		exists = ok
		return err
	})
	return exists, err
}

// generateTableID hashes tableName with xxhash, forces the result even,
// and linearly probes +2 against prefix_metadata until an unused id is
// found (spec.md 4.3, resolving Open Question 1 with a bounded probe).
func (c *Catalog) generateTableID(tableName string) (uint32, error) {
	id := uint32(xxhash.Sum64String(tableName))
	if id&1 == 1 {
		id--
	}
	for i := 0; i < maxTableIDProbes; i++ {
		var taken bool
		err := c.store.View(func(txn *kv.Txn) error {
			_, ok, err := c.prefixMetadata.SystemPointLookup(txn, types.Row{types.NewBigInt(int64(id))})
			taken = ok
			return err
		})
		if err != nil {
			return 0, err
		}
		if !taken {
			return id, nil
		}
		id += 2
	}
	return 0, errTableExists("", tableName)
}

// Table resolves a (database, table) pair to a storage handle, reading
// the tables and prefix_metadata rows (spec.md 4.3). TableNotFound if
// absent.
func (c *Catalog) Table(databaseName, tableName string) (*storage.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		tableID  int64
		colsJSON string
	)
	err := c.store.View(func(txn *kv.Txn) error {
		row, ok, err := c.tables.SystemPointLookup(txn, types.Row{types.NewText(databaseName), types.NewText(tableName)})
		if err != nil {
			return err
		}
		if !ok {
			return errTableNotFound(databaseName, tableName)
		}
		tableID, _ = row[2].AsBigInt()
		colsJSON, _ = row[3].AsText()
		return nil
	})
	if err != nil {
		return nil, err
	}

	cols, err := decodeColumns([]byte(colsJSON))
	if err != nil {
		return nil, err
	}

	var pksJSON string
	err = c.store.View(func(txn *kv.Txn) error {
		row, ok, err := c.prefixMetadata.SystemPointLookup(txn, types.Row{types.NewBigInt(tableID)})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("catalog: missing prefix_metadata row for table id %d", tableID)
		}
		pksJSON, _ = row[2].AsText()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var descFlags []bool
	if err := json.Unmarshal([]byte(pksJSON), &descFlags); err != nil {
		return nil, fmt.Errorf("catalog: decode pk sort orders: %w", err)
	}
	pkOrders := make([]types.SortOrder, len(descFlags))
	for i, desc := range descFlags {
		if desc {
			pkOrders[i] = types.Descending
		} else {
			pkOrders[i] = types.Ascending
		}
	}

	schema := make(types.Schema, len(cols))
	for i, c := range cols {
		schema[i] = types.Column{Name: c.Name, Type: c.Type}
	}
	return storage.NewTable(c.store, uint32(tableID), schema, len(pkOrders), pkOrders), nil
}
