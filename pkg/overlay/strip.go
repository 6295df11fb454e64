package overlay

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
)

// Strip returns a transmissible copy of value: references marked by ov
// become nil, Undefined becomes nil and errors become
// {name, message, stack} maps. The result only contains nil, bool, int64,
// uint64, float64, string, []byte, []any and map[string]any, so it never
// aliases the caller's memory.
func Strip(value any, ov any) (any, error) {
	switch o := ov.(type) {
	case nil:
		return normalize(value)

	case string:
		switch o {
		case MarkUndefined:
			return nil, nil
		case MarkError:
			err, ok := value.(error)
			if !ok {
				return nil, fmt.Errorf("overlay: error marker over %T", value)
			}
			return errorFields(err), nil
		}
		return nil, fmt.Errorf("overlay: unknown marker %q", o)

	case []any:
		rv := indirect(reflect.ValueOf(value))
		if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != len(o) {
			return nil, fmt.Errorf("overlay: sequence overlay over %T", value)
		}
		out := make([]any, rv.Len())
		for i := range out {
			v, err := Strip(rv.Index(i).Interface(), o[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case map[string]any:
		rv := indirect(reflect.ValueOf(value))
		out := make(map[string]any)
		switch rv.Kind() {
		case reflect.Map:
			iter := rv.MapRange()
			for iter.Next() {
				key := iter.Key().String()
				v, err := Strip(iter.Value().Interface(), o[key])
				if err != nil {
					return nil, err
				}
				out[key] = v
			}
		case reflect.Struct:
			for _, f := range plainFields(rv.Type()) {
				v, err := Strip(rv.Field(f.index).Interface(), o[f.name])
				if err != nil {
					return nil, err
				}
				out[f.name] = v
			}
		default:
			return nil, fmt.Errorf("overlay: keyed overlay over %T", value)
		}
		return out, nil
	}

	if _, ok := AsID(ov); ok {
		return nil, nil
	}
	return nil, fmt.Errorf("overlay: unexpected overlay leaf %T", ov)
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv
		}
		rv = rv.Elem()
	}
	return rv
}

// normalize deep-copies plain data into the generic value model.
func normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return v, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case UndefinedValue:
		return nil, nil
	case error:
		return errorFields(v), nil
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u), nil
		}
		return u, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			v, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{Type: rv.Type()}
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = v
		}
		return out, nil

	case reflect.Struct:
		fields := plainFields(rv.Type())
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			v, err := normalize(rv.Field(f.index).Interface())
			if err != nil {
				return nil, err
			}
			out[f.name] = v
		}
		return out, nil
	}

	return nil, &UnsupportedTypeError{Type: rv.Type()}
}
