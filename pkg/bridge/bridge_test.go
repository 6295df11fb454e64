package bridge

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/vango-dev/objbridge/pkg/overlay"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

func TestRootProperties(t *testing.T) {
	root := &simple{Foo: "x", Bar: 1, Secret: "s", Hidden: "h", Items: []any{"a", 2, overlay.Undefined}}
	_, _, p := bridgeRoot(t, root)

	if p.Type() != "simple" {
		t.Errorf("Type() = %q, want %q", p.Type(), "simple")
	}
	if got := p.Get("foo"); got != "x" {
		t.Errorf("foo = %v, want x", got)
	}
	if got := p.Get("bar"); got != int64(1) {
		t.Errorf("bar = %#v, want int64(1)", got)
	}
	items, ok := p.Get("items").([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("items = %#v", p.Get("items"))
	}
	if items[2] != overlay.Undefined {
		t.Errorf("items[2] = %#v, want Undefined", items[2])
	}
	for _, name := range []string{"secret", "Secret", "_hidden", "hidden"} {
		if p.Has(name) {
			t.Errorf("Has(%q) = true, want false", name)
		}
	}
	if c, _ := p.Lookup("child"); c != nil {
		t.Errorf("child = %v, want nil", c)
	}
}

func TestIdentityAndCycles(t *testing.T) {
	a := &simple{Foo: "a"}
	b := &simple{Foo: "b", Child: a}
	a.Child = b
	shared := &simple{Foo: "shared"}
	a.Items = []any{shared, shared, map[string]any{"again": shared}}

	_, _, pa := bridgeRoot(t, a)

	pb, ok := pa.Get("child").(*Proxy)
	if !ok {
		t.Fatalf("child = %#v, want *Proxy", pa.Get("child"))
	}
	if pb.Get("foo") != "b" {
		t.Errorf("child.foo = %v, want b", pb.Get("foo"))
	}
	if pb.Get("child") != pa {
		t.Error("cycle does not lead back to the root proxy")
	}

	items := pa.Get("items").([]any)
	if items[0] != items[1] {
		t.Error("the same object appears as two proxies")
	}
	if items[2].(map[string]any)["again"] != items[0] {
		t.Error("nested reference is a different proxy")
	}
}

func TestCallRoundTrip(t *testing.T) {
	_, _, p := bridgeRoot(t, &methodAPI{})

	if got := mustResult(t, p.Call("double", 21)); got != int64(42) {
		t.Errorf("double(21) = %#v, want 42", got)
	}
	if got := mustResult(t, p.Call("sum", 1, 2, 3)); got != int64(6) {
		t.Errorf("sum(1, 2, 3) = %#v, want 6", got)
	}
	if got := mustResult(t, p.Call("greet", map[string]any{"name": "ada"})); got != "hello ada" {
		t.Errorf("greet = %#v", got)
	}

	err := mustFail(t, p.Call("fail"))
	var re *overlay.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("fail() error = %T, want *overlay.RemoteError", err)
	}
	if re.Message != "boom" {
		t.Errorf("Message = %q, want boom", re.Message)
	}

	err = mustFail(t, p.Call("panic"))
	if !errors.As(err, &re) || re.Name != "PanicError" {
		t.Errorf("panic() error = %v, want PanicError", err)
	}

	err = mustFail(t, p.Call("greet", map[string]any{}))
	if err.Error() != "no name" {
		t.Errorf("greet({}) error = %q", err.Error())
	}

	err = mustFail(t, p.Call("double", 1, 2))
	if !strings.Contains(err.Error(), "too many arguments") {
		t.Errorf("double(1, 2) error = %q", err.Error())
	}
}

func TestCallUnknownMethodFailsLocally(t *testing.T) {
	_, _, p := bridgeRoot(t, &methodAPI{})
	err := mustFail(t, p.Call("nope"))
	if !errors.Is(err, ErrNoSuchMethod) {
		t.Errorf("error = %v, want ErrNoSuchMethod", err)
	}
	want := "bridge: object 'MethodApi' has no method 'nope'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestCallRejectsObjectParams(t *testing.T) {
	_, _, p := bridgeRoot(t, &methodAPI{})
	err := mustFail(t, p.Call("double", p))
	if !errors.Is(err, errProxyParam) {
		t.Errorf("error = %v, want errProxyParam", err)
	}
}

func TestCallOnDeletedObject(t *testing.T) {
	root := &simple{Child: &simple{Foo: "child"}}
	api := &methodAPI{}
	root.Items = []any{api}
	_, _, p := bridgeRoot(t, root)

	child := p.Get("items").([]any)[0].(*Proxy)
	root.Items = nil
	root.Update()

	if !child.Deleted() {
		t.Fatal("proxy not deleted after object became unreachable")
	}
	err := mustFail(t, child.Call("double", 1))
	if !errors.Is(err, ErrDeletedObject) {
		t.Errorf("error = %v, want ErrDeletedObject", err)
	}
	want := "bridge: calling method 'double' on deleted object 'MethodApi'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestServerAnswersCallsToUnknownObjects(t *testing.T) {
	var sent []*protocol.Message
	b, err := New(func(m *protocol.Message) error {
		sent = append(sent, m)
		return nil
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	err = b.HandleMessage(&protocol.Message{Calls: []protocol.Call{{ID: 9, CallID: 1, Method: "x"}}})
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if len(sent) != 1 || len(sent[0].Returns) != 1 {
		t.Fatalf("sent = %+v, want one return", sent)
	}
	ret := sent[0].Returns[0]
	if !ret.Failed || ret.CallID != 1 {
		t.Errorf("return = %+v, want failed return for call 1", ret)
	}
	fields, _ := ret.Value.(map[string]any)
	if msg, _ := fields["message"].(string); !strings.Contains(msg, "deleted object") {
		t.Errorf("message = %q, want deleted object", msg)
	}
}

func TestUpdatesAreMinimal(t *testing.T) {
	server, client, rec := newPair(t)
	root := &simple{Foo: "x", Bar: 1}
	if err := server.SendRoot(root); err != nil {
		t.Fatalf("SendRoot() error: %v", err)
	}
	p := mustResult(t, client.Root()).(*Proxy)

	first := rec.last()
	if len(first.Creates) != 1 || first.Root == nil {
		t.Fatalf("first message = %s, want one create and the root", first.Summary())
	}

	root.Bar = 2
	root.Update()
	m := rec.last()
	if m.Summary() != "~1" {
		t.Fatalf("update message = %s, want ~1", m.Summary())
	}
	if u := m.Updates[0]; u.PropertyName != "bar" || u.Value != int64(2) {
		t.Errorf("update = %+v", u)
	}
	if p.Get("bar") != int64(2) {
		t.Errorf("bar = %v, want 2", p.Get("bar"))
	}

	n := rec.count()
	if err := server.SendNow(); err != nil {
		t.Fatalf("SendNow() error: %v", err)
	}
	root.Update()
	if rec.count() != n {
		t.Errorf("an unchanged graph sent %d messages", rec.count()-n)
	}
}

type reading struct {
	Object
	Value float64
}

func TestUnchangedNaNIsNotResent(t *testing.T) {
	var msgs []*protocol.Message
	b, err := New(func(m *protocol.Message) error {
		msgs = append(msgs, m)
		return nil
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	r := &reading{Value: math.NaN()}
	if err := b.SendRoot(r); err != nil {
		t.Fatalf("SendRoot() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := b.SendNow(); err != nil {
			t.Fatalf("SendNow() error: %v", err)
		}
	}
	if len(msgs) != 1 {
		t.Errorf("sent %d messages for an unchanged NaN, want 1", len(msgs))
	}

	r.Value = 1.5
	if err := b.SendNow(); err != nil {
		t.Fatalf("SendNow() error: %v", err)
	}
	if len(msgs) != 2 || len(msgs[1].Updates) != 1 {
		t.Errorf("change from NaN was not sent once: %d messages", len(msgs))
	}
}

func TestSameValue(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nan", nan, nan, true},
		{"nan vs number", nan, 1.0, false},
		{"numbers", 2.0, 2.0, true},
		{"nested nan", map[string]any{"x": []any{nan}}, map[string]any{"x": []any{nan}}, true},
		{"missing key", map[string]any{"x": nil}, map[string]any{"y": nil}, false},
		{"length", []any{1.0}, []any{1.0, 2.0}, false},
		{"nil vs empty", []any(nil), []any{}, false},
		{"strings", "a", "a", true},
		{"types", int64(1), 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameValue(tt.a, tt.b); got != tt.want {
				t.Errorf("sameValue(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestWatchAndEvents(t *testing.T) {
	api := &methodAPI{}
	_, _, p := bridgeRoot(t, api)

	var seen []any
	cancel := p.Watch("flag", func(v any) { seen = append(seen, v) })

	f := p.Call("toggle")
	if len(seen) != 1 || seen[0] != true {
		t.Fatalf("watch saw %v, want [true]", seen)
	}
	if mustResult(t, f) != true {
		t.Errorf("toggle() = %v, want true", mustResult(t, f))
	}

	cancel()
	mustResult(t, p.Call("toggle"))
	if len(seen) != 1 {
		t.Errorf("watch fired after cancel: %v", seen)
	}

	var payloads, others []any
	p.On("changed", func(v any) { payloads = append(payloads, v) })
	p.On("changed", func(v any) { others = append(others, v) })
	if err := api.Emit("changed", map[string]any{"n": 1}); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if len(payloads) != 1 || payloads[0].(map[string]any)["n"] != int64(1) {
		t.Errorf("payloads = %v", payloads)
	}
	if len(others) != 1 || others[0].(map[string]any)["n"] != int64(1) {
		t.Errorf("second listener payloads = %v", others)
	}

	err := api.Emit("other", nil)
	if !errors.Is(err, ErrUndeclaredEvent) {
		t.Errorf("Emit(other) error = %v, want ErrUndeclaredEvent", err)
	}
	err = api.Emit("changed", make(chan int))
	var ute *overlay.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Errorf("Emit(chan) error = %v, want UnsupportedTypeError", err)
	}
}

func TestReturnedObjectsAndRetain(t *testing.T) {
	server, client, p := bridgeRoot(t, &methodAPI{})

	kid, ok := mustResult(t, p.Call("spawn", "kid")).(*Proxy)
	if !ok {
		t.Fatal("spawn() did not return a proxy")
	}
	if kid.Get("name") != "kid" {
		t.Errorf("kid.name = %v", kid.Get("name"))
	}
	if err := server.SendNow(); err != nil {
		t.Fatalf("SendNow() error: %v", err)
	}
	if !kid.Deleted() {
		t.Error("unreferenced returned object survived the next flush")
	}

	kept := &methodAPI{Name: "kept"}
	if err := server.Retain(kept); err != nil {
		t.Fatalf("Retain() error: %v", err)
	}
	if err := server.SendNow(); err != nil {
		t.Fatalf("SendNow() error: %v", err)
	}
	client.mu.Lock()
	n := len(client.client.proxies)
	client.mu.Unlock()
	if n != 2 {
		t.Errorf("client tracks %d proxies, want 2", n)
	}

	server.Release(kept)
	client.mu.Lock()
	n = len(client.client.proxies)
	client.mu.Unlock()
	if n != 1 {
		t.Errorf("client tracks %d proxies after Release, want 1", n)
	}
}

type computed struct {
	Object
	Value Getter
	Child *simple
	Bad   any
}

func TestGetterErrorsAreValues(t *testing.T) {
	fail := true
	root := &computed{}
	root.Value = func() (any, error) {
		if fail {
			return nil, errors.New("not ready")
		}
		return "ready", nil
	}
	_, _, p := bridgeRoot(t, root)

	re, ok := p.Get("value").(*overlay.RemoteError)
	if !ok || re.Message != "not ready" {
		t.Fatalf("value = %#v, want remote error", p.Get("value"))
	}

	fail = false
	root.Update()
	if p.Get("value") != "ready" {
		t.Errorf("value = %v, want ready", p.Get("value"))
	}
}

func TestFailedFlushIsRolledBack(t *testing.T) {
	var flushErrs []error
	root := &computed{}
	server, _, p := bridgeRoot(t, root, WithErrorHandler(func(err error) {
		flushErrs = append(flushErrs, err)
	}))

	next := server.server.reg.Next()
	root.Child = &simple{Foo: "c"}
	root.Bad = make(chan int)
	root.Update()

	if len(flushErrs) != 1 {
		t.Fatalf("flush errors = %v, want one", flushErrs)
	}
	var ute *overlay.UnsupportedTypeError
	if !errors.As(flushErrs[0], &ute) {
		t.Errorf("error = %v, want UnsupportedTypeError", flushErrs[0])
	}
	if c, _ := p.Lookup("child"); c != nil {
		t.Errorf("child = %v after failed flush, want nil", c)
	}

	root.Bad = nil
	root.Update()
	child, ok := p.Get("child").(*Proxy)
	if !ok {
		t.Fatal("child not announced after fix")
	}
	if child.ID() != next+1 {
		t.Errorf("child id = %d, want %d (burned %d)", child.ID(), next+1, next)
	}
}

func TestSendRootRejectsUnsupportedValues(t *testing.T) {
	server, _, _ := newPair(t)
	err := server.SendRoot(map[string]any{"f": func() {}})
	var ute *overlay.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Errorf("SendRoot() error = %v, want UnsupportedTypeError", err)
	}
	if err := server.SendRoot("ok"); err != nil {
		t.Fatalf("SendRoot(ok) error: %v", err)
	}
	if err := server.SendRoot("again"); !errors.Is(err, ErrRootAlreadySent) {
		t.Errorf("second SendRoot() error = %v, want ErrRootAlreadySent", err)
	}
}

func TestPlainRoot(t *testing.T) {
	got, err := NewLocal(map[string]any{"n": 1, "list": []int{1, 2}}, protocol.Clone)
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	m := got.(map[string]any)
	if m["n"] != int64(1) {
		t.Errorf("n = %#v", m["n"])
	}
}

func TestNewLocalThroughJSON(t *testing.T) {
	got, err := NewLocal(&methodAPI{Name: "json"}, protocol.CloneJSON)
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	p := got.(*Proxy)
	if v := mustResult(t, p.Call("double", 21)); v != float64(42) {
		t.Errorf("double(21) = %#v, want 42", v)
	}
}

func TestProtocolErrorsCloseTheBridge(t *testing.T) {
	tests := []struct {
		name string
		msgs []*protocol.Message
		want error
	}{
		{
			name: "update of unknown object",
			msgs: []*protocol.Message{{Updates: []protocol.Update{{ID: 7, PropertyName: "x"}}}},
			want: ErrDesync,
		},
		{
			name: "reference to unknown object",
			msgs: []*protocol.Message{{Root: &protocol.Root{Overlay: protocol.ObjectID(3)}}},
			want: ErrDesync,
		},
		{
			name: "duplicate root",
			msgs: []*protocol.Message{
				{Root: &protocol.Root{Value: "a"}},
				{Root: &protocol.Root{Value: "b"}},
			},
			want: ErrDuplicateRoot,
		},
		{
			name: "return for unknown call",
			msgs: []*protocol.Message{{Returns: []protocol.Return{{CallID: 5}}}},
			want: ErrDesync,
		},
		{
			name: "invalid message",
			msgs: []*protocol.Message{{Deletes: []protocol.ObjectID{0}}},
			want: protocol.ErrInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := New(func(*protocol.Message) error { return nil })
			var err error
			for _, m := range tt.msgs {
				if err = b.HandleMessage(m); err != nil {
					break
				}
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("HandleMessage() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrDesync) {
				t.Errorf("error %v does not match ErrDesync", err)
			}
			if !b.Closed() {
				t.Error("bridge still open after protocol error")
			}
			if err := b.HandleMessage(&protocol.Message{}); !errors.Is(err, ErrClosed) {
				t.Errorf("HandleMessage() after close = %v, want ErrClosed", err)
			}
		})
	}
}

func TestEventsForUnknownObjectsAreIgnored(t *testing.T) {
	b, _ := New(func(*protocol.Message) error { return nil })
	err := b.HandleMessage(&protocol.Message{Events: []protocol.Event{{ID: 4, Name: "x"}}})
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if b.Closed() {
		t.Error("bridge closed by an event for an untracked object")
	}
}

func TestCloseRejectsPending(t *testing.T) {
	var sent []*protocol.Message
	b, _ := New(func(m *protocol.Message) error {
		sent = append(sent, m)
		return nil
	})
	root := b.Root()

	err := b.HandleMessage(&protocol.Message{
		Creates: []protocol.Create{{ID: 1, Type: "T", MethodNames: []string{"ping"}, Value: map[string]any{}}},
		Root:    &protocol.Root{Overlay: protocol.ObjectID(1)},
	})
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	p := mustResult(t, root).(*Proxy)

	call := p.Call("ping", 1)
	if len(sent) != 1 || len(sent[0].Calls) != 1 {
		t.Fatalf("sent = %+v, want one call", sent)
	}
	if _, err := call.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("Result() error = %v, want ErrPending", err)
	}

	reason := errors.New("gone")
	b.Close(reason)
	b.Close(errors.New("second close is ignored"))

	if _, err := call.Result(); err != reason {
		t.Errorf("pending call error = %v, want %v", err, reason)
	}
	if b.Err() != reason {
		t.Errorf("Err() = %v, want %v", b.Err(), reason)
	}
	if _, err := p.Call("ping").Result(); err != reason {
		t.Errorf("call after close = %v, want %v", err, reason)
	}
	if err := b.SendNow(); !errors.Is(err, ErrClosed) {
		t.Errorf("SendNow() after close = %v, want ErrClosed", err)
	}

	other, _ := New(func(*protocol.Message) error { return nil })
	other.Close(nil)
	if _, err := other.Root().Result(); !errors.Is(err, ErrClosed) {
		t.Errorf("root after close = %v, want ErrClosed", err)
	}
}

func TestSendFailureClosesBridge(t *testing.T) {
	broken := errors.New("broken pipe")
	b, _ := New(func(*protocol.Message) error { return broken })
	if err := b.SendRoot("x"); !errors.Is(err, broken) {
		t.Fatalf("SendRoot() error = %v, want %v", err, broken)
	}
	if !b.Closed() || !errors.Is(b.Err(), broken) {
		t.Errorf("Closed() = %v, Err() = %v", b.Closed(), b.Err())
	}
}

func TestNewRequiresSendFunc(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoSendFunc) {
		t.Errorf("New(nil) error = %v, want ErrNoSendFunc", err)
	}
}

func TestNilObjectIsNotBridgeable(t *testing.T) {
	server, _, _ := newPair(t)
	var obj *simple
	if err := server.Retain(obj); !errors.Is(err, ErrNotBridgeable) {
		t.Errorf("Retain(nil) error = %v, want ErrNotBridgeable", err)
	}
	if err := server.Emit(obj, "changed", nil); !errors.Is(err, ErrNotBridgeable) {
		t.Errorf("Emit(nil) error = %v, want ErrNotBridgeable", err)
	}
}
