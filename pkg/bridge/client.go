package bridge

import (
	"errors"
	"fmt"

	"github.com/vango-dev/objbridge/pkg/overlay"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

var errProxyParam = errors.New("bridge: call parameters must be plain data")

// clientState is the receiving half of a bridge: the proxy table, pending
// calls and the root announcement.
type clientState struct {
	owner   *Bridge
	proxies map[protocol.ObjectID]*Proxy
	pending map[uint64]*Future

	nextCallID uint64
	calls      []protocol.Call

	root     *Future
	rootSeen bool
}

func newClientState(owner *Bridge) *clientState {
	return &clientState{
		owner:   owner,
		proxies: make(map[protocol.ObjectID]*Proxy),
		pending: make(map[uint64]*Future),
		root:    newFuture(),
	}
}

func (c *clientState) lookup(id overlay.ID) (any, bool) {
	p, ok := c.proxies[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// apply folds m into the proxy table. Callbacks and future resolutions are
// returned in delivery order so they can run without the bridge lock.
func (c *clientState) apply(m *protocol.Message) ([]func(), error) {
	var notes []func()

	for _, cr := range m.Creates {
		if _, ok := c.proxies[cr.ID]; ok {
			return nil, protocolErrorf("create", "object %d already exists", cr.ID)
		}
		c.proxies[cr.ID] = newProxy(c.owner, cr.ID, cr.Type, cr.MethodNames)
	}
	for _, cr := range m.Creates {
		v, err := overlay.Apply(cr.Value, cr.Overlay, c.lookup)
		if err != nil {
			return nil, &ProtocolError{Op: "create", Err: err}
		}
		if v == nil {
			continue
		}
		props, ok := v.(map[string]any)
		if !ok {
			return nil, protocolErrorf("create", "object %d has properties of type %T", cr.ID, v)
		}
		c.proxies[cr.ID].props = props
	}

	for _, id := range m.Deletes {
		p, ok := c.proxies[id]
		if !ok {
			return nil, protocolErrorf("delete", "unknown object %d", id)
		}
		p.deleted = true
		delete(c.proxies, id)
	}

	for _, u := range m.Updates {
		p, ok := c.proxies[u.ID]
		if !ok {
			return nil, protocolErrorf("update", "unknown object %d", u.ID)
		}
		v, err := overlay.Apply(u.Value, u.Overlay, c.lookup)
		if err != nil {
			return nil, &ProtocolError{Op: "update", Err: err}
		}
		p.props[u.PropertyName] = v
		notes = notify(notes, p.watchers[u.PropertyName], v)
	}

	for _, r := range m.Returns {
		f, ok := c.pending[r.CallID]
		if !ok {
			return nil, protocolErrorf("return", "unknown call %d", r.CallID)
		}
		delete(c.pending, r.CallID)
		v, err := overlay.Apply(r.Value, r.Overlay, c.lookup)
		if err != nil {
			return nil, &ProtocolError{Op: "return", Err: err}
		}
		if r.Failed {
			rejected := asError(v)
			notes = append(notes, func() { f.settle(nil, rejected) })
		} else {
			notes = append(notes, func() { f.settle(v, nil) })
		}
	}

	for _, ev := range m.Events {
		p, ok := c.proxies[ev.ID]
		if !ok {
			continue
		}
		v, err := overlay.Apply(ev.Value, ev.Overlay, c.lookup)
		if err != nil {
			return nil, &ProtocolError{Op: "event", Err: err}
		}
		notes = notify(notes, p.listeners[ev.Name], v)
	}

	if m.Root != nil {
		if c.rootSeen {
			return nil, &ProtocolError{Op: "root", Err: ErrDuplicateRoot}
		}
		c.rootSeen = true
		v, err := overlay.Apply(m.Root.Value, m.Root.Overlay, c.lookup)
		if err != nil {
			return nil, &ProtocolError{Op: "root", Err: err}
		}
		root := c.root
		notes = append(notes, func() { root.settle(v, nil) })
	}
	return notes, nil
}

// queueCall records an outgoing call and returns its future.
func (c *clientState) queueCall(p *Proxy, method string, params []any) (*Future, error) {
	encoded, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	c.nextCallID++
	f := newFuture()
	c.pending[c.nextCallID] = f
	c.calls = append(c.calls, protocol.Call{
		ID:     p.id,
		CallID: c.nextCallID,
		Method: method,
		Params: encoded,
	})
	return f, nil
}

func (c *clientState) takeCalls() []protocol.Call {
	calls := c.calls
	c.calls = nil
	return calls
}

// close detaches every pending future so the caller can reject them.
func (c *clientState) close() []*Future {
	futures := make([]*Future, 0, len(c.pending)+1)
	for id, f := range c.pending {
		futures = append(futures, f)
		delete(c.pending, id)
	}
	c.calls = nil
	return append(futures, c.root)
}

// encodeParams converts call parameters to plain data. Undefined becomes
// nil and errors become {name, message} maps; bridged objects are refused.
func encodeParams(params []any) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		ov, err := overlay.Make(p, func(v any) (overlay.ID, bool, error) {
			switch v.(type) {
			case *Proxy, Bridgeable:
				return 0, false, fmt.Errorf("%w: argument %d is %T", errProxyParam, i, v)
			}
			return 0, false, nil
		})
		if err != nil {
			return nil, err
		}
		raw, err := overlay.Strip(p, ov)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func asError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return &overlay.RemoteError{Name: "Error", Message: fmt.Sprint(v)}
}
