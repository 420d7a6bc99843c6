package docstore

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Decode converts a document body into a typed model using its bson tags.
func Decode(data Data, out any) error {
	if data == nil {
		return errors.New("docstore: decode of absent document")
	}
	b, err := bson.Marshal(data)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, out)
}

// Normalize converts a value into the canonical in-memory form used for
// comparison: nested maps become map[string]any, slices []any, integers
// int64, floats float64 and times UTC with millisecond precision (the
// precision the production store keeps).
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return normalizeMap(x)
	case primitive.M:
		return normalizeMap(x)
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case primitive.A:
		return normalizeSlice([]any(x))
	case []any:
		return normalizeSlice(x)
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC().Truncate(time.Millisecond)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case string, bool, float64, []byte:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// NormalizeData normalizes a document body. A nil body stays nil.
func NormalizeData(d Data) Data {
	if d == nil {
		return nil
	}
	return normalizeMap(d)
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Normalize(v)
	}
	return out
}

// Lookup returns the value at a dotted field path of d.
func Lookup(d Data, field string) (any, bool) {
	var cur any = d
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Equal compares two normalized values. Numbers compare by value across
// int64 and float64.
func Equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
		return false
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// Compare orders two normalized scalar values of the same family (numbers,
// strings, times, bools). ok is false when the values are not comparable.
func Compare(a, b any) (cmp int, ok bool) {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok {
			return 0, false
		}
		return three(fa < fb, fa > fb), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return three(x.Before(y), x.After(y)), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return three(!x && y, x && !y), true
	}
	return 0, false
}

func three(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
