package catalog

import "fmt"

// Kind enumerates the catalog failure modes from spec.md 7.
type Kind int

const (
	DatabaseNotFound Kind = iota
	DatabaseAlreadyExists
	DatabaseNotEmpty
	TableNotFound
	TableAlreadyExists
)

func (k Kind) String() string {
	switch k {
	case DatabaseNotFound:
		return "database not found"
	case DatabaseAlreadyExists:
		return "database already exists"
	case DatabaseNotEmpty:
		return "database not empty"
	case TableNotFound:
		return "table not found"
	case TableAlreadyExists:
		return "table already exists"
	default:
		return "unknown catalog error"
	}
}

// Error is the CatalogError family (spec.md 7): DatabaseNotFound,
// DatabaseAlreadyExists, DatabaseNotEmpty, TableNotFound, TableAlreadyExists.
type Error struct {
	Kind     Kind
	Database string
	Table    string
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("catalog: %s: %s.%s", e.Kind, e.Database, e.Table)
	}
	return fmt.Sprintf("catalog: %s: %s", e.Kind, e.Database)
}

func errDatabaseNotFound(db string) error    { return &Error{Kind: DatabaseNotFound, Database: db} }
func errDatabaseExists(db string) error      { return &Error{Kind: DatabaseAlreadyExists, Database: db} }
func errDatabaseNotEmpty(db string) error    { return &Error{Kind: DatabaseNotEmpty, Database: db} }
func errTableNotFound(db, tbl string) error  { return &Error{Kind: TableNotFound, Database: db, Table: tbl} }
func errTableExists(db, tbl string) error    { return &Error{Kind: TableAlreadyExists, Database: db, Table: tbl} }
