package querysql

import (
	"database/sql/driver"
	"reflect"
)

// expand returns the elements of a slice or array value. Byte slices and
// driver.Valuer values bind as single values.
func expand(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.(driver.Valuer); ok {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
