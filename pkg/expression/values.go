package expression

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Truthy reports whether v counts as true: nil, false, zero numbers and
// empty strings, slices and maps are false.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// Equal compares two values. Numbers compare by value across integer and
// float types; anything else uses deep equality.
func Equal(a, b any) bool {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return x == y
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}

// ToInt converts a helper argument to an int. Strings may use a 0x prefix.
func ToInt(v any) (int, error) {
	if f, ok := toNumber(v); ok {
		if f != math.Trunc(f) {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(f), nil
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return 0, errors.Errorf("%q is not an integer", s)
		}
		return int(n), nil
	}
	return 0, errors.Errorf("%v (%T) is not an integer", v, v)
}

// ToFloat converts a helper argument to a float64.
func ToFloat(v any) (float64, error) {
	if f, ok := toNumber(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, errors.Errorf("%q is not a number", s)
		}
		return f, nil
	}
	return 0, errors.Errorf("%v (%T) is not a number", v, v)
}
