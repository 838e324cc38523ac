package orm

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Conditions maps a column to the value it must match. A scalar renders as
// equality, nil as IS NULL, and a slice as = ANY($n::bigint[]) or
// = ANY($n::text[]) depending on its first element. Entries are joined with
// AND in ascending column order.
type Conditions map[string]interface{}

// compiledConditions is the rendered form of a Conditions value.
type compiledConditions struct {
	predicates []squirrel.Sqlizer
	// unsatisfiable is set when an empty slice appears; such a set can never
	// match a row and callers skip the round-trip entirely.
	unsatisfiable bool
}

func (c Conditions) columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func (c Conditions) compile() (compiledConditions, error) {
	var out compiledConditions

	for _, col := range c.columns() {
		value := c[col]

		if value == nil {
			out.predicates = append(out.predicates, squirrel.Eq{col: nil})
			continue
		}

		if !isArray(value) {
			out.predicates = append(out.predicates, squirrel.Eq{col: value})
			continue
		}

		arr, castType, empty, err := normalizeArray(value)
		if err != nil {
			return compiledConditions{}, fmt.Errorf("column %s: %w", col, err)
		}
		if empty {
			out.unsatisfiable = true
			return out, nil
		}

		out.predicates = append(out.predicates,
			squirrel.Expr(fmt.Sprintf("%s = ANY(?::%s[])", col, castType), arr))
	}

	return out, nil
}

func isArray(value interface{}) bool {
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// normalizeArray converts a slice condition into a pq array value and the
// Postgres element type it is cast to. The element type follows the first
// element; every other element must share it.
func normalizeArray(value interface{}) (interface{}, string, bool, error) {
	rv := reflect.ValueOf(value)
	if rv.Len() == 0 {
		return nil, "", true, nil
	}

	first := reflect.Indirect(reflect.ValueOf(rv.Index(0).Interface()))
	switch {
	case isInteger(first.Kind()):
		ints := make([]int64, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(reflect.ValueOf(rv.Index(i).Interface()))
			switch {
			case isSigned(elem.Kind()):
				ints[i] = elem.Int()
			case isUnsigned(elem.Kind()):
				ints[i] = int64(elem.Uint())
			default:
				return nil, "", false, ErrMixedArray
			}
		}
		return pq.Array(ints), "bigint", false, nil

	case first.Kind() == reflect.String:
		strs := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(reflect.ValueOf(rv.Index(i).Interface()))
			if elem.Kind() != reflect.String {
				return nil, "", false, ErrMixedArray
			}
			strs[i] = elem.String()
		}
		return pq.Array(strs), "text", false, nil
	}

	return nil, "", false, fmt.Errorf("unsupported array element type %s", first.Kind())
}

func isInteger(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
