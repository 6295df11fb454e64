package bridge

import "github.com/vango-dev/objbridge/pkg/protocol"

// registry maps bridged objects to identifiers for one server state.
// Identifiers start at 1, grow monotonically and are never reused.
type registry struct {
	next    protocol.ObjectID
	ids     map[*Object]protocol.ObjectID
	objects map[protocol.ObjectID]Bridgeable
}

func newRegistry() *registry {
	return &registry{
		next:    1,
		ids:     make(map[*Object]protocol.ObjectID),
		objects: make(map[protocol.ObjectID]Bridgeable),
	}
}

// Assign returns obj's identifier, registering it first when needed.
func (r *registry) Assign(obj Bridgeable) (id protocol.ObjectID, isNew bool) {
	base := obj.bridgeObject()
	if id, ok := r.ids[base]; ok {
		return id, false
	}
	id = r.next
	r.next++
	r.ids[base] = id
	r.objects[id] = obj
	return id, true
}

// Lookup returns the object registered under id.
func (r *registry) Lookup(id protocol.ObjectID) (Bridgeable, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// IDOf returns the identifier of a registered object.
func (r *registry) IDOf(obj Bridgeable) (protocol.ObjectID, bool) {
	return r.idOfBase(obj.bridgeObject())
}

func (r *registry) idOfBase(base *Object) (protocol.ObjectID, bool) {
	id, ok := r.ids[base]
	return id, ok
}

// Remove forgets id. The identifier is not handed out again.
func (r *registry) Remove(id protocol.ObjectID) {
	obj, ok := r.objects[id]
	if !ok {
		return
	}
	delete(r.objects, id)
	delete(r.ids, obj.bridgeObject())
}

// Len returns the number of registered objects.
func (r *registry) Len() int { return len(r.objects) }

// Next returns the identifier the next Assign of a new object will use.
func (r *registry) Next() protocol.ObjectID { return r.next }
