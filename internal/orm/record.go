package orm

import "github.com/Masterminds/squirrel"

// Record is an ordered column/value list used for inserts and updates.
// Columns render in the order they were set; setting a column twice
// replaces its value in place.
type Record struct {
	columns []string
	values  []interface{}
}

// NewRecord starts an empty record.
func NewRecord() Record {
	return Record{}
}

// Set appends or replaces a column value.
func (r Record) Set(column string, value interface{}) Record {
	for i, c := range r.columns {
		if c == column {
			values := append([]interface{}(nil), r.values...)
			values[i] = value
			return Record{columns: r.columns, values: values}
		}
	}
	return Record{
		columns: append(append([]string(nil), r.columns...), column),
		values:  append(append([]interface{}(nil), r.values...), value),
	}
}

// Columns returns the column names in record order.
func (r Record) Columns() []string {
	return r.columns
}

// Values returns the values in record order.
func (r Record) Values() []interface{} {
	return r.values
}

// Get returns the value stored for column.
func (r Record) Get(column string) (interface{}, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r Record) Len() int {
	return len(r.columns)
}

// Now renders as the database clock when used as a record value.
var Now squirrel.Sqlizer = squirrel.Expr("NOW()")
