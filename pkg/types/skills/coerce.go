package skills

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// CoerceArguments checks required parameters and converts the declared ones
// to their parameter type. Arguments not declared by any parameter are passed
// through unchanged.
func CoerceArguments(params []Parameter, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw)+len(params))
	for k, v := range raw {
		out[k] = v
	}

	for _, p := range params {
		value, ok := raw[p.Name]
		if !ok || value == nil {
			if p.Required && p.Default == nil {
				return nil, NewError(KindMissingArgument, "missing required argument %q", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerceValue(p, value)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func coerceValue(p Parameter, value any) (any, error) {
	switch p.Type {
	case TypeBool:
		return ToBool(p.Name, value)
	case TypeInt:
		return toInt(p.Name, value)
	case TypeFloat:
		return toFloat(p.Name, value)
	case TypePath:
		return Path(fmt.Sprint(value)), nil
	default:
		return value, nil
	}
}

// ToBool converts value to a boolean. Only bools and the strings
// 1/true/yes/y and 0/false/no/n (any case) are accepted.
func ToBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true, nil
		case "0", "false", "no", "n":
			return false, nil
		}
	}
	return false, NewError(KindCoercion, "cannot convert %v to bool for %q", value, name)
}

func toInt(name string, value any) (int, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int(f)) {
			return int(f), nil
		}
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		// Base 0 accepts 0x-prefixed event codes as well as decimals.
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return int(n), nil
		}
	}
	return 0, NewError(KindCoercion, "cannot convert %v to int for %q", value, name)
}

func toFloat(name string, value any) (float64, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64); err == nil {
			return f, nil
		}
	}
	return 0, NewError(KindCoercion, "cannot convert %v to float for %q", value, name)
}
