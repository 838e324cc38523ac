package orm

import "fmt"

// Table describes a table the store may touch. Descriptors are declared once
// and passed around instead of bare table-name strings.
type Table struct {
	Name       string   `json:"name"`
	PrimaryKey string   `json:"primary_key"`
	Columns    []string `json:"columns"`
}

// NewTable declares a table whose primary key is "id".
func NewTable(name string, columns ...string) Table {
	return Table{Name: name, PrimaryKey: "id", Columns: columns}
}

// Key returns the primary key column, defaulting to "id".
func (t Table) Key() string {
	if t.PrimaryKey == "" {
		return "id"
	}
	return t.PrimaryKey
}

// HasColumn checks if a column is declared on the table. The primary key
// always counts as declared.
func (t Table) HasColumn(column string) bool {
	if column == t.Key() {
		return true
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Qualify returns table.column.
func (t Table) Qualify(column string) string {
	return fmt.Sprintf("%s.%s", t.Name, column)
}

func (t Table) String() string {
	return t.Name
}
