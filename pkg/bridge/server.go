package bridge

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/vango-dev/objbridge/pkg/overlay"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

// snapshot is the last transmitted encoding of one property.
type snapshot struct {
	value   any
	overlay any
}

func (s snapshot) equal(o snapshot) bool {
	return sameValue(s.value, o.value) && reflect.DeepEqual(s.overlay, o.overlay)
}

// sameValue compares stripped values. Unlike reflect.DeepEqual it treats
// NaN as equal to itself, so an unchanged NaN property is not resent.
func sameValue(a, b any) bool {
	switch a := a.(type) {
	case float64:
		b, ok := b.(float64)
		return ok && (a == b || (math.IsNaN(a) && math.IsNaN(b)))
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) || (a == nil) != (b == nil) {
			return false
		}
		for i := range a {
			if !sameValue(a[i], b[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok || len(a) != len(b) || (a == nil) != (b == nil) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !sameValue(av, bv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

type trackedObject struct {
	id    protocol.ObjectID
	obj   Bridgeable
	info  *TypeInfo
	props map[string]snapshot
}

// serverState is the sending half of a bridge: it owns the identity
// registry and everything announced to the peer.
type serverState struct {
	owner   *Bridge
	reg     *registry
	tracked map[protocol.ObjectID]*trackedObject

	root     any
	hasRoot  bool
	rootSent bool

	retained  []Bridgeable
	transient []Bridgeable
	returns   []protocol.Return
	events    []protocol.Event
}

func newServerState(owner *Bridge) *serverState {
	return &serverState{
		owner:   owner,
		reg:     newRegistry(),
		tracked: make(map[protocol.ObjectID]*trackedObject),
	}
}

// asBridgeable reports whether v is a non-nil bridgeable object.
func asBridgeable(v any) (Bridgeable, bool) {
	obj, ok := v.(Bridgeable)
	if !ok {
		return nil, false
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, false
	}
	return obj, true
}

// checkEncodable validates value without registering anything.
func checkEncodable(value any) error {
	_, err := overlay.Make(value, func(v any) (overlay.ID, bool, error) {
		if _, ok := asBridgeable(v); ok {
			return 0, true, nil
		}
		return 0, false, nil
	})
	return err
}

func (s *serverState) setRoot(value any) error {
	if s.hasRoot {
		return ErrRootAlreadySent
	}
	if err := checkEncodable(value); err != nil {
		return err
	}
	s.root = value
	s.hasRoot = true
	return nil
}

func (s *serverState) retain(obj Bridgeable) {
	for _, r := range s.retained {
		if r.bridgeObject() == obj.bridgeObject() {
			return
		}
	}
	s.retained = append(s.retained, obj)
}

func (s *serverState) release(obj Bridgeable) {
	for i, r := range s.retained {
		if r.bridgeObject() == obj.bridgeObject() {
			s.retained = append(s.retained[:i], s.retained[i+1:]...)
			return
		}
	}
}

// encodeTransient encodes a return or event value. Objects it references
// stay reachable until the next successful flush announces them.
func (s *serverState) encodeTransient(value any) (raw, ov any, err error) {
	var fresh []protocol.ObjectID
	var found []Bridgeable
	raw, ov, err = overlay.Encode(value, func(v any) (overlay.ID, bool, error) {
		obj, ok := asBridgeable(v)
		if !ok {
			return 0, false, nil
		}
		id, isNew := s.reg.Assign(obj)
		if isNew {
			fresh = append(fresh, id)
		}
		found = append(found, obj)
		return id, true, nil
	})
	if err != nil {
		for _, id := range fresh {
			s.reg.Remove(id)
		}
		return nil, nil, err
	}
	s.transient = append(s.transient, found...)
	return raw, ov, nil
}

func (s *serverState) queueReturn(callID uint64, result any, callErr error) {
	if callErr == nil {
		raw, ov, err := s.encodeTransient(result)
		if err == nil {
			s.returns = append(s.returns, protocol.Return{CallID: callID, Value: raw, Overlay: ov})
			return
		}
		callErr = fmt.Errorf("bridge: encoding result: %w", err)
	}
	raw, ov, _ := overlay.Encode(callErr, nil)
	s.returns = append(s.returns, protocol.Return{CallID: callID, Failed: true, Value: raw, Overlay: ov})
}

func (s *serverState) queueEvent(base *Object, name string, payload any) error {
	id, ok := s.reg.idOfBase(base)
	if !ok {
		return ErrUnknownObject
	}
	obj, _ := s.reg.Lookup(id)
	if info := TypeOf(obj); !info.Declares(name) {
		return fmt.Errorf("%w: %s has no event %q", ErrUndeclaredEvent, info.Name, name)
	}
	raw, ov, err := s.encodeTransient(payload)
	if err != nil {
		return err
	}
	s.events = append(s.events, protocol.Event{ID: id, Name: name, Value: raw, Overlay: ov})
	return nil
}

// inboundCall is a call resolved against the registry, ready to run
// outside the bridge lock.
type inboundCall struct {
	call   protocol.Call
	obj    Bridgeable
	info   *TypeInfo
	method *MethodInfo
	err    error
}

func (s *serverState) prepareCall(c protocol.Call) inboundCall {
	in := inboundCall{call: c}
	t, ok := s.tracked[c.ID]
	if !ok {
		in.err = &CallError{Method: c.Method, ID: c.ID, Err: ErrDeletedObject}
		return in
	}
	m, ok := t.info.Method(c.Method)
	if !ok {
		in.err = &CallError{Method: c.Method, Type: t.info.Name, ID: c.ID, Err: ErrNoSuchMethod}
		return in
	}
	in.obj, in.info, in.method = t.obj, t.info, m
	return in
}

// flushCycle is the scratch state of one flush. Nothing it records reaches
// the server state before commit.
type flushCycle struct {
	s       *serverState
	visited map[protocol.ObjectID]bool
	queue   []Bridgeable
	fresh   []protocol.ObjectID

	creates []protocol.Create
	updates []protocol.Update
	added   []*trackedObject
	changed map[protocol.ObjectID]map[string]snapshot
}

func (c *flushCycle) resolve(v any) (overlay.ID, bool, error) {
	obj, ok := asBridgeable(v)
	if !ok {
		return 0, false, nil
	}
	id, isNew := c.s.reg.Assign(obj)
	if isNew {
		c.fresh = append(c.fresh, id)
	}
	if !c.visited[id] {
		c.visited[id] = true
		c.queue = append(c.queue, obj)
	}
	return id, true, nil
}

func (c *flushCycle) describe(obj Bridgeable) error {
	id, _ := c.s.reg.IDOf(obj)
	t := c.s.tracked[id]

	info := TypeOf(obj)
	if t != nil {
		info = t.info
	}
	values := info.read(obj)
	props := make(map[string]snapshot, len(info.Properties))
	for _, p := range info.Properties {
		raw, ov, err := overlay.Encode(values[p.Name], c.resolve)
		if err != nil {
			return fmt.Errorf("bridge: %s.%s: %w", info.Name, p.Name, err)
		}
		props[p.Name] = snapshot{value: raw, overlay: ov}
	}

	if t == nil {
		value := make(map[string]any, len(props))
		var ovs map[string]any
		for name, snap := range props {
			value[name] = snap.value
			if snap.overlay != nil {
				if ovs == nil {
					ovs = make(map[string]any)
				}
				ovs[name] = snap.overlay
			}
		}
		create := protocol.Create{ID: id, Type: info.Name, MethodNames: info.MethodNames(), Value: value}
		if ovs != nil {
			create.Overlay = ovs
		}
		c.creates = append(c.creates, create)
		c.added = append(c.added, &trackedObject{id: id, obj: obj, info: info, props: props})
		return nil
	}

	for _, p := range info.Properties {
		snap := props[p.Name]
		if old, ok := t.props[p.Name]; ok && old.equal(snap) {
			continue
		}
		c.updates = append(c.updates, protocol.Update{
			ID:           id,
			PropertyName: p.Name,
			Value:        snap.value,
			Overlay:      snap.overlay,
		})
	}
	c.changed[id] = props
	return nil
}

func (c *flushCycle) rollback() {
	for _, id := range c.fresh {
		c.s.reg.Remove(id)
	}
}

// flush walks the reachable graph and builds the next message. On error
// the cycle is discarded: identifiers assigned during it are burned and no
// snapshot changes.
func (s *serverState) flush() (*protocol.Message, error) {
	c := &flushCycle{
		s:       s,
		visited: make(map[protocol.ObjectID]bool),
		changed: make(map[protocol.ObjectID]map[string]snapshot),
	}

	var root *protocol.Root
	if s.hasRoot {
		raw, ov, err := overlay.Encode(s.root, c.resolve)
		if err != nil {
			c.rollback()
			return nil, err
		}
		if !s.rootSent {
			root = &protocol.Root{Value: raw, Overlay: ov}
		}
	}
	for _, obj := range s.retained {
		c.resolve(obj)
	}
	for _, obj := range s.transient {
		c.resolve(obj)
	}
	for len(c.queue) > 0 {
		obj := c.queue[0]
		c.queue = c.queue[1:]
		if err := c.describe(obj); err != nil {
			c.rollback()
			return nil, err
		}
	}

	var deletes []protocol.ObjectID
	for id := range s.tracked {
		if !c.visited[id] {
			deletes = append(deletes, id)
		}
	}
	sort.Slice(deletes, func(i, j int) bool { return deletes[i] < deletes[j] })

	for _, t := range c.added {
		s.tracked[t.id] = t
		t.obj.bridgeObject().attach(s.owner)
	}
	for id, props := range c.changed {
		s.tracked[id].props = props
	}
	for _, id := range deletes {
		t := s.tracked[id]
		delete(s.tracked, id)
		s.reg.Remove(id)
		t.obj.bridgeObject().detach(s.owner)
	}

	msg := &protocol.Message{
		Creates: c.creates,
		Updates: c.updates,
		Deletes: deletes,
		Returns: s.returns,
		Events:  s.events,
		Root:    root,
	}
	if root != nil {
		s.rootSent = true
	}
	s.returns = nil
	s.events = nil
	s.transient = nil
	return msg, nil
}

// close forgets every tracked object.
func (s *serverState) close() {
	for id, t := range s.tracked {
		t.obj.bridgeObject().detach(s.owner)
		delete(s.tracked, id)
	}
	s.retained = nil
	s.transient = nil
	s.returns = nil
	s.events = nil
}
