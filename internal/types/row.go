package types

// Row is an ordered sequence of Datums matching a declared Schema
// (spec.md 3). Rows yielded by an iterator's Get() are borrowed: valid
// only until that iterator's next Advance call.
type Row []Datum

// IntoStatic returns a copy of the row with every Datum promoted to a
// static (non-borrowed) form, safe to retain across iterator steps.
func (r Row) IntoStatic() Row {
	out := make(Row, len(r))
	for i, d := range r {
		out[i] = d.IntoStatic()
	}
	return out
}

// Clone makes a shallow copy of the row slice (new backing array, same
// Datums) -- cheaper than IntoStatic when the caller knows no element is
// borrowed.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Column is a named, typed field: of a table schema, or of an operator's
// output row shape.
type Column struct {
	Name string
	Type DataType
}

// Schema is an ordered list of columns.
type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func (s Schema) Types() []DataType {
	types := make([]DataType, len(s))
	for i, c := range s {
		types[i] = c.Type
	}
	return types
}

// IndexOf returns the position of the named column, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SortOrder is ascending or descending, used both by ORDER BY expressions
// and by the sortable codec (spec.md 4.1).
type SortOrder uint8

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// Frequency is the signed multiplicity carried alongside every row
// flowing through the executor tree (spec.md 3): positive for insertion,
// negative for retraction.
type Frequency = int32
