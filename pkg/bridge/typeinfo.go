package bridge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/vango-dev/objbridge/internal/codec"
)

// TypeInfo is the capability descriptor of a bridgeable type: its type tag
// and the properties, methods and events it exposes.
//
// The descriptor is derived from the Go type:
//   - the type tag is BridgeType() when the type implements it, else the
//     struct name;
//   - every exported field is a property, named by its `bridge` tag or its
//     lowerCamel field name; `bridge:"-"` and names starting with '_' are
//     private;
//   - fields of type Getter are computed properties;
//   - every exported method of the pointer type is a method, named
//     lowerCamel, except the methods provided by Object;
//   - the `events` tag of the embedded Object lists the declared events.
//     Without it any event may be emitted.
type TypeInfo struct {
	Name       string
	Properties []PropertyInfo
	Methods    []MethodInfo
	Events     []string

	methods map[string]int
	events  map[string]struct{}
}

// PropertyInfo describes one synchronised property.
type PropertyInfo struct {
	Name     string
	Computed bool
	index    []int
}

// MethodInfo describes one callable method.
type MethodInfo struct {
	Name   string
	GoName string
	index  int
	typ    reflect.Type
}

// Typed lets a bridgeable type choose its type tag.
type Typed interface {
	BridgeType() string
}

var (
	typeCache sync.Map // reflect.Type -> *TypeInfo

	objectType = reflect.TypeOf(Object{})
	getterType = reflect.TypeOf(Getter(nil))
	errorType  = reflect.TypeOf((*error)(nil)).Elem()

	baseMethods = map[string]bool{"BridgeType": true}
)

func init() {
	t := reflect.TypeOf(&Object{})
	for i := 0; i < t.NumMethod(); i++ {
		baseMethods[t.Method(i).Name] = true
	}
}

// TypeOf returns the descriptor for obj's type.
func TypeOf(obj Bridgeable) *TypeInfo {
	info := describe(reflect.TypeOf(obj))
	if typed, ok := obj.(Typed); ok {
		if name := typed.BridgeType(); name != "" && name != info.Name {
			cp := *info
			cp.Name = name
			return &cp
		}
	}
	return info
}

func describe(t reflect.Type) *TypeInfo {
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*TypeInfo)
	}

	info := &TypeInfo{
		methods: make(map[string]int),
	}
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	info.Name = st.Name()

	if st.Kind() == reflect.Struct {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if f.Anonymous && f.Type == objectType {
				if tag, ok := f.Tag.Lookup("events"); ok {
					info.events = make(map[string]struct{})
					for _, name := range strings.Split(tag, ",") {
						if name = strings.TrimSpace(name); name != "" {
							info.events[name] = struct{}{}
							info.Events = append(info.Events, name)
						}
					}
				}
				continue
			}
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name := lowerCamel(f.Name)
			if tag, ok := f.Tag.Lookup("bridge"); ok {
				if tag == "-" {
					continue
				}
				if tag != "" {
					name = tag
				}
			}
			if strings.HasPrefix(name, "_") {
				continue
			}
			info.Properties = append(info.Properties, PropertyInfo{
				Name:     name,
				Computed: f.Type == getterType,
				index:    f.Index,
			})
		}
	}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if baseMethods[m.Name] {
			continue
		}
		info.methods[lowerCamel(m.Name)] = len(info.Methods)
		info.Methods = append(info.Methods, MethodInfo{
			Name:   lowerCamel(m.Name),
			GoName: m.Name,
			index:  i,
			typ:    m.Type,
		})
	}

	actual, _ := typeCache.LoadOrStore(t, info)
	return actual.(*TypeInfo)
}

// MethodNames returns the exposed method names in sorted order.
func (t *TypeInfo) MethodNames() []string {
	names := make([]string, len(t.Methods))
	for i, m := range t.Methods {
		names[i] = m.Name
	}
	sort.Strings(names)
	return names
}

// Method returns the method exposed under name.
func (t *TypeInfo) Method(name string) (*MethodInfo, bool) {
	i, ok := t.methods[name]
	if !ok {
		return nil, false
	}
	return &t.Methods[i], true
}

// Declares reports whether event may be emitted by objects of this type.
func (t *TypeInfo) Declares(event string) bool {
	if t.events == nil {
		return true
	}
	_, ok := t.events[event]
	return ok
}

// read returns the current property values of obj. A failing getter yields
// its error as the value.
func (t *TypeInfo) read(obj Bridgeable) map[string]any {
	rv := reflect.ValueOf(obj).Elem()
	out := make(map[string]any, len(t.Properties))
	for _, p := range t.Properties {
		fv := rv.FieldByIndex(p.index)
		if !p.Computed {
			out[p.Name] = fv.Interface()
			continue
		}
		get, _ := fv.Interface().(Getter)
		if get == nil {
			out[p.Name] = nil
			continue
		}
		v, err := callGetter(p.Name, get)
		if err != nil {
			out[p.Name] = err
			continue
		}
		out[p.Name] = v
	}
	return out
}

func callGetter(name string, get Getter) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Method: name, Value: r, Stack: debug.Stack()}
		}
	}()
	return get()
}

// invoke calls the method on obj with params converted to the Go parameter
// types. Supported result shapes are (), (T), (error) and (T, error); more
// results are returned as a list.
func (m *MethodInfo) invoke(obj Bridgeable, params []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Method: m.Name, Value: r, Stack: debug.Stack()}
		}
	}()

	fn := reflect.ValueOf(obj).Method(m.index)
	in, err := convertParams(fn.Type(), params)
	if err != nil {
		return nil, fmt.Errorf("bridge: %s: %w", m.Name, err)
	}

	out := fn.Call(in)

	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	list := make([]any, len(out))
	for i, v := range out {
		list[i] = v.Interface()
	}
	return list, nil
}

var errTooManyArgs = errors.New("too many arguments")

func convertParams(ft reflect.Type, params []any) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	} else if len(params) > fixed {
		return nil, fmt.Errorf("%w: got %d, want %d", errTooManyArgs, len(params), fixed)
	}

	in := make([]reflect.Value, 0, max(fixed, len(params)))
	for i := 0; i < fixed; i++ {
		var p any
		if i < len(params) {
			p = params[i]
		}
		v, err := convertValue(p, ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	if ft.IsVariadic() {
		elem := ft.In(fixed).Elem()
		for i := fixed; i < len(params); i++ {
			v, err := convertValue(params[i], elem)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, v)
		}
	}
	return in, nil
}

func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return convertNumber(rv, t)
	}
	if rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	out := reflect.New(t)
	if err := codec.Convert(v, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	return out.Elem(), nil
}

func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case isSigned(t.Kind()):
		n, ok := asInt64(rv)
		if !ok || out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s", rv.Interface(), t)
		}
		out.SetInt(n)
	case isInteger(t.Kind()):
		n, ok := asUint64(rv)
		if !ok || out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s", rv.Interface(), t)
		}
		out.SetUint(n)
	default:
		out.Set(rv.Convert(t))
	}
	return out, nil
}

func asInt64(rv reflect.Value) (int64, bool) {
	switch {
	case isSigned(rv.Kind()):
		return rv.Int(), true
	case isInteger(rv.Kind()):
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	}
	f := rv.Float()
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func asUint64(rv reflect.Value) (uint64, bool) {
	switch {
	case isSigned(rv.Kind()):
		n := rv.Int()
		return uint64(n), n >= 0
	case isInteger(rv.Kind()):
		return rv.Uint(), true
	}
	f := rv.Float()
	if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(f), true
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// lowerCamel lowers the leading capital run of a Go identifier:
// Count -> count, ID -> id, HTTPServer -> httpServer.
func lowerCamel(name string) string {
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return name
	case n == 1 || n == len(runes):
		for i := 0; i < n; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	default:
		for i := 0; i < n-1; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	}
	return string(runes)
}
