package overlay

import (
	"encoding"
	"reflect"
)

// Resolver reports whether v is a bridged object. When it is, the resolver
// returns the object's identifier, registering the object first if needed.
// A nil Resolver treats every value as plain data.
type Resolver func(v any) (id ID, ok bool, err error)

// Make computes the overlay for value. It returns nil when value contains
// nothing but plain data.
//
// Reference leaves stop the recursion, so a cyclic graph of bridged objects
// is safe to walk as long as resolve recognises every object in the cycle.
func Make(value any, resolve Resolver) (any, error) {
	switch value.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil, nil
	case UndefinedValue:
		return MarkUndefined, nil
	}
	if resolve != nil {
		id, ok, err := resolve(value)
		if err != nil {
			return nil, err
		}
		if ok {
			return id, nil
		}
	}
	if _, ok := value.(error); ok {
		return MarkError, nil
	}
	if _, ok := value.(encoding.TextMarshaler); ok {
		return nil, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil, nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Make(rv.Elem().Interface(), resolve)

	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, nil
		}
		return makeSequence(rv, resolve)

	case reflect.Array:
		return makeSequence(rv, resolve)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{Type: rv.Type()}
		}
		var out map[string]any
		iter := rv.MapRange()
		for iter.Next() {
			ov, err := Make(iter.Value().Interface(), resolve)
			if err != nil {
				return nil, err
			}
			if ov != nil {
				if out == nil {
					out = make(map[string]any)
				}
				out[iter.Key().String()] = ov
			}
		}
		if out == nil {
			return nil, nil
		}
		return out, nil

	case reflect.Struct:
		var out map[string]any
		for _, f := range plainFields(rv.Type()) {
			ov, err := Make(rv.Field(f.index).Interface(), resolve)
			if err != nil {
				return nil, err
			}
			if ov != nil {
				if out == nil {
					out = make(map[string]any)
				}
				out[f.name] = ov
			}
		}
		if out == nil {
			return nil, nil
		}
		return out, nil
	}

	return nil, &UnsupportedTypeError{Type: rv.Type()}
}

func makeSequence(rv reflect.Value, resolve Resolver) (any, error) {
	var out []any
	for i := 0; i < rv.Len(); i++ {
		ov, err := Make(rv.Index(i).Interface(), resolve)
		if err != nil {
			return nil, err
		}
		if ov != nil && out == nil {
			out = make([]any, rv.Len())
		}
		if out != nil {
			out[i] = ov
		}
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}

// Encode is Make followed by Strip.
func Encode(value any, resolve Resolver) (raw any, ov any, err error) {
	ov, err = Make(value, resolve)
	if err != nil {
		return nil, nil, err
	}
	raw, err = Strip(value, ov)
	if err != nil {
		return nil, nil, err
	}
	return raw, ov, nil
}
