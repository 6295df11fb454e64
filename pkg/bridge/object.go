package bridge

import (
	"errors"
	"sync"
)

// Object marks a struct as bridgeable. Embed it by value:
//
//	type Counter struct {
//	    bridge.Object `events:"tick"`
//	    Count int
//	}
//
//	func (c *Counter) Increment(by int) int {
//	    c.Count += by
//	    c.Update()
//	    return c.Count
//	}
//
// Exported fields become properties and exported methods become callable
// methods on the client proxy; see TypeInfo for the naming rules.
//
// Fields are read during flushes. Methods invoked through the bridge never
// run concurrently with a flush of that bridge, throttled or not, so they
// may mutate fields directly. Other code should mutate fields from the
// goroutine that drives the bridge, or synchronise externally, and call
// Update afterwards so the change reaches the peer.
type Object struct {
	mu      sync.Mutex
	bridges map[*Bridge]struct{}
}

// Bridgeable is implemented by pointers to structs embedding Object.
type Bridgeable interface {
	bridgeObject() *Object
}

func (o *Object) bridgeObject() *Object { return o }

// Getter is a computed property. A getter that fails is synchronised as an
// error value instead of aborting the flush.
type Getter func() (any, error)

// Update schedules a flush on every bridge that tracks the object.
func (o *Object) Update() {
	for _, b := range o.attached() {
		b.flushSoon()
	}
}

// Emit sends an event to every bridge that tracks the object. A payload the
// codec cannot express is reported here rather than at flush time.
func (o *Object) Emit(event string, payload any) error {
	var errs []error
	for _, b := range o.attached() {
		if err := b.emit(o, event, payload); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Object) attach(b *Bridge) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bridges == nil {
		o.bridges = make(map[*Bridge]struct{})
	}
	o.bridges[b] = struct{}{}
}

func (o *Object) detach(b *Bridge) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.bridges, b)
}

func (o *Object) attached() []*Bridge {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Bridge, 0, len(o.bridges))
	for b := range o.bridges {
		out = append(out, b)
	}
	return out
}
