package bridge

import (
	"fmt"
	"slices"

	"github.com/vango-dev/objbridge/pkg/protocol"
)

// Proxy is the client-side stand-in for a bridged object. Property values
// that refer to other objects hold their *Proxy, so identity is preserved:
// the same remote object is always the same Proxy.
type Proxy struct {
	bridge  *Bridge
	id      protocol.ObjectID
	typ     string
	methods []string

	// guarded by bridge.mu
	props     map[string]any
	watchers  map[string][]*subscription
	listeners map[string][]*subscription
	deleted   bool
}

type subscription struct {
	fn func(value any)
}

func newProxy(b *Bridge, id protocol.ObjectID, typ string, methods []string) *Proxy {
	return &Proxy{
		bridge:    b,
		id:        id,
		typ:       typ,
		methods:   slices.Clone(methods),
		props:     make(map[string]any),
		watchers:  make(map[string][]*subscription),
		listeners: make(map[string][]*subscription),
	}
}

// ID returns the object's identifier within its bridge.
func (p *Proxy) ID() protocol.ObjectID { return p.id }

// Type returns the object's type tag.
func (p *Proxy) Type() string { return p.typ }

// Methods returns the names of the callable methods.
func (p *Proxy) Methods() []string { return slices.Clone(p.methods) }

// HasMethod reports whether name is a callable method.
func (p *Proxy) HasMethod(name string) bool { return slices.Contains(p.methods, name) }

// Has reports whether name is a property or a method.
func (p *Proxy) Has(name string) bool {
	if p.HasMethod(name) {
		return true
	}
	_, ok := p.Lookup(name)
	return ok
}

// Get returns a property value, or nil if there is no such property.
func (p *Proxy) Get(name string) any {
	v, _ := p.Lookup(name)
	return v
}

// Lookup returns a property value and whether the property exists.
func (p *Proxy) Lookup(name string) (any, bool) {
	p.bridge.mu.Lock()
	defer p.bridge.mu.Unlock()
	v, ok := p.props[name]
	return v, ok
}

// Props returns a copy of all property values.
func (p *Proxy) Props() map[string]any {
	p.bridge.mu.Lock()
	defer p.bridge.mu.Unlock()
	out := make(map[string]any, len(p.props))
	for k, v := range p.props {
		out[k] = v
	}
	return out
}

// Deleted reports whether the object has left the peer's graph.
func (p *Proxy) Deleted() bool {
	p.bridge.mu.Lock()
	defer p.bridge.mu.Unlock()
	return p.deleted
}

// Call invokes a method on the remote object. Calls on deleted objects or
// to methods the object does not expose fail without reaching the peer.
// Parameters must be plain data.
func (p *Proxy) Call(method string, params ...any) *Future {
	return p.bridge.call(p, method, params)
}

// Watch registers fn to run with the new value whenever prop changes.
// The returned function removes the registration.
func (p *Proxy) Watch(prop string, fn func(value any)) (cancel func()) {
	return p.subscribe(p.watchers, prop, fn)
}

// On registers fn to run with the payload of every event named event.
// The returned function removes the registration.
func (p *Proxy) On(event string, fn func(payload any)) (cancel func()) {
	return p.subscribe(p.listeners, event, fn)
}

func (p *Proxy) subscribe(set map[string][]*subscription, key string, fn func(any)) func() {
	sub := &subscription{fn: fn}
	p.bridge.mu.Lock()
	set[key] = append(set[key], sub)
	p.bridge.mu.Unlock()
	return func() {
		p.bridge.mu.Lock()
		defer p.bridge.mu.Unlock()
		set[key] = slices.DeleteFunc(set[key], func(s *subscription) bool { return s == sub })
		if len(set[key]) == 0 {
			delete(set, key)
		}
	}
}

// String returns "Type#id".
func (p *Proxy) String() string {
	return fmt.Sprintf("%s#%d", p.typ, p.id)
}

// notify queues fn for every subscription under key.
func notify(notes []func(), subs []*subscription, value any) []func() {
	for _, s := range subs {
		fn := s.fn
		notes = append(notes, func() { fn(value) })
	}
	return notes
}
