package overlay

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// ref is a stand-in for a bridged object in these tests.
type ref struct{ name string }

func resolverFor(ids map[*ref]ID) Resolver {
	return func(v any) (ID, bool, error) {
		r, ok := v.(*ref)
		if !ok {
			return 0, false, nil
		}
		return ids[r], true, nil
	}
}

type point struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Label string `json:"-"`
	Owner *ref   `json:"owner,omitempty"`
	hid   int
}

func TestMakePlainValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"nil", nil},
		{"bool", true},
		{"int", 42},
		{"float", 1.5},
		{"string", "hello"},
		{"bytes", []byte("raw")},
		{"slice", []any{1, "two", []int{3}}},
		{"map", map[string]any{"a": 1, "b": map[string]int{"c": 2}}},
		{"struct", point{X: 1, Y: 2}},
		{"time", time.Unix(0, 0)},
		{"nil pointer", (*point)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ov, err := Make(tt.value, nil)
			if err != nil {
				t.Fatalf("Make() error: %v", err)
			}
			if ov != nil {
				t.Errorf("Make() = %#v, want nil", ov)
			}
		})
	}
}

func TestMakeMarkers(t *testing.T) {
	ov, err := Make(Undefined, nil)
	if err != nil || ov != MarkUndefined {
		t.Errorf("Make(Undefined) = %#v, %v", ov, err)
	}
	ov, err = Make(errors.New("boom"), nil)
	if err != nil || ov != MarkError {
		t.Errorf("Make(error) = %#v, %v", ov, err)
	}
}

func TestMakeSparseSequence(t *testing.T) {
	a, b := &ref{"a"}, &ref{"b"}
	resolve := resolverFor(map[*ref]ID{a: 1, b: 2})

	ov, err := Make([]any{"x", a, 3, b, Undefined}, resolve)
	if err != nil {
		t.Fatalf("Make() error: %v", err)
	}
	want := []any{nil, ID(1), nil, ID(2), MarkUndefined}
	if !reflect.DeepEqual(ov, want) {
		t.Errorf("Make() = %#v, want %#v", ov, want)
	}
}

func TestMakeSparseKeyed(t *testing.T) {
	a := &ref{"a"}
	resolve := resolverFor(map[*ref]ID{a: 7})

	ov, err := Make(map[string]any{
		"plain":  1,
		"ref":    a,
		"nested": map[string]any{"deep": []any{a}, "flat": "x"},
		"point":  point{X: 1, Owner: a},
	}, resolve)
	if err != nil {
		t.Fatalf("Make() error: %v", err)
	}
	want := map[string]any{
		"ref":    ID(7),
		"nested": map[string]any{"deep": []any{ID(7)}},
		"point":  map[string]any{"owner": ID(7)},
	}
	if !reflect.DeepEqual(ov, want) {
		t.Errorf("Make() = %#v, want %#v", ov, want)
	}
}

func TestMakeUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   string
	}{
		{"func", func() {}, "func()"},
		{"chan", make(chan int), "chan int"},
		{"complex", complex(1, 2), "complex128"},
		{"int keys", map[int]string{1: "a"}, "map[int]string"},
		{"nested func", map[string]any{"f": func(int) {}}, "func(int)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Make(tt.value, nil)
			var ute *UnsupportedTypeError
			if !errors.As(err, &ute) {
				t.Fatalf("Make() error = %v, want *UnsupportedTypeError", err)
			}
			if !strings.Contains(err.Error(), tt.typ) {
				t.Errorf("error %q does not name %s", err, tt.typ)
			}
		})
	}
}

func TestResolverShortCircuitsCycles(t *testing.T) {
	type node struct {
		Next *node `json:"next"`
	}
	n := &node{}
	n.Next = n
	calls := 0
	resolve := func(v any) (ID, bool, error) {
		if v == any(n) {
			calls++
			return 1, true, nil
		}
		return 0, false, nil
	}
	ov, err := Make(map[string]any{"head": n}, resolve)
	if err != nil {
		t.Fatalf("Make() error: %v", err)
	}
	if !reflect.DeepEqual(ov, map[string]any{"head": ID(1)}) {
		t.Errorf("Make() = %#v", ov)
	}
	if calls != 1 {
		t.Errorf("resolver called %d times for the cyclic node, want 1", calls)
	}
}

func TestStripNormalizes(t *testing.T) {
	a := &ref{"a"}
	value := map[string]any{
		"n":     uint8(3),
		"list":  []string{"x", "y"},
		"point": point{X: 1, Y: 2, Label: "hidden", Owner: a},
		"ref":   a,
		"undef": Undefined,
		"err":   errors.New("boom"),
	}
	raw, ov, err := Encode(value, resolverFor(map[*ref]ID{a: 4}))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := map[string]any{
		"n":     int64(3),
		"list":  []any{"x", "y"},
		"point": map[string]any{"x": int64(1), "y": int64(2), "owner": nil},
		"ref":   nil,
		"undef": nil,
		"err":   map[string]any{"name": "Error", "message": "boom"},
	}
	if !reflect.DeepEqual(raw, want) {
		t.Errorf("Strip() = %#v\nwant %#v", raw, want)
	}
	wantOv := map[string]any{
		"point": map[string]any{"owner": ID(4)},
		"ref":   ID(4),
		"undef": MarkUndefined,
		"err":   MarkError,
	}
	if !reflect.DeepEqual(ov, wantOv) {
		t.Errorf("Make() = %#v\nwant %#v", ov, wantOv)
	}
}

func TestStripDoesNotAlias(t *testing.T) {
	src := map[string]any{"list": []any{1, 2}}
	raw, err := Strip(src, nil)
	if err != nil {
		t.Fatalf("Strip() error: %v", err)
	}
	src["list"].([]any)[0] = 99
	if got := raw.(map[string]any)["list"].([]any)[0]; got != int64(1) {
		t.Errorf("stripped copy changed with source: %v", got)
	}
}

func TestApplyRoundtrip(t *testing.T) {
	a, b := &ref{"a"}, &ref{"b"}
	ids := map[*ref]ID{a: 1, b: 2}
	proxies := map[ID]string{1: "proxy-a", 2: "proxy-b"}
	lookup := func(id ID) (any, bool) {
		p, ok := proxies[id]
		return p, ok
	}

	value := map[string]any{
		"children": []any{a, a, b},
		"missing":  Undefined,
		"failure":  errors.New("boom"),
		"plain":    "text",
	}
	raw, ov, err := Encode(value, resolverFor(ids))
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Apply(raw, ov, lookup)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	m := got.(map[string]any)
	children := m["children"].([]any)
	if children[0] != "proxy-a" || children[1] != "proxy-a" || children[2] != "proxy-b" {
		t.Errorf("children = %#v", children)
	}
	if m["missing"] != Undefined {
		t.Errorf("missing = %#v, want Undefined", m["missing"])
	}
	re, ok := m["failure"].(*RemoteError)
	if !ok || re.Message != "boom" || re.Error() != "boom" {
		t.Errorf("failure = %#v", m["failure"])
	}
	if m["plain"] != "text" {
		t.Errorf("plain = %#v", m["plain"])
	}
}

func TestApplyAcceptsDecodedIDs(t *testing.T) {
	lookup := func(id ID) (any, bool) { return id, id == 5 }
	for _, leaf := range []any{ID(5), uint64(5), int64(5), float64(5), 5} {
		got, err := Apply(nil, leaf, lookup)
		if err != nil {
			t.Fatalf("Apply(%T) error: %v", leaf, err)
		}
		if got != ID(5) {
			t.Errorf("Apply(%T) = %v", leaf, got)
		}
	}
}

func TestApplyDesync(t *testing.T) {
	lookup := func(id ID) (any, bool) { return nil, false }
	tests := []struct {
		name string
		raw  any
		ov   any
	}{
		{"unknown id", nil, ID(9)},
		{"sequence over map", map[string]any{}, []any{ID(1)}},
		{"length mismatch", []any{1}, []any{nil, ID(1)}},
		{"keyed over sequence", []any{}, map[string]any{"a": ID(1)}},
		{"missing key", map[string]any{}, map[string]any{"a": MarkUndefined}},
		{"bad marker", nil, "zzz"},
		{"bad leaf", nil, true},
		{"error over string", "boom", MarkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.raw, tt.ov, lookup)
			if !errors.Is(err, ErrDesync) {
				t.Errorf("Apply() error = %v, want ErrDesync", err)
			}
		})
	}
}

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestErrorNames(t *testing.T) {
	tests := []struct {
		err  error
		name string
	}{
		{errors.New("x"), "Error"},
		{customErr{}, "customErr"},
		{&RemoteError{Name: "TypeError", Message: "x"}, "TypeError"},
	}
	for _, tt := range tests {
		if got := errorName(tt.err); got != tt.name {
			t.Errorf("errorName(%T) = %q, want %q", tt.err, got, tt.name)
		}
	}
}
