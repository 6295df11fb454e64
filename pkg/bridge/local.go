package bridge

import "github.com/vango-dev/objbridge/pkg/protocol"

// CloneFunc copies a message in transit. protocol.Clone and
// protocol.CloneJSON round-trip through the wire encodings.
type CloneFunc func(m *protocol.Message) (*protocol.Message, error)

// Pipe connects two bridges back to back in the same process. Messages are
// delivered synchronously, passing through clone when it is non-nil.
// Without clone both sides share message memory.
func Pipe(clone CloneFunc, opts ...Option) (a, b *Bridge, err error) {
	deliverTo := func(peer **Bridge) SendFunc {
		return func(m *protocol.Message) error {
			if clone != nil {
				cloned, cerr := clone(m)
				if cerr != nil {
					return cerr
				}
				m = cloned
			}
			return (*peer).HandleMessage(m)
		}
	}
	a, err = New(deliverTo(&b), opts...)
	if err != nil {
		return nil, nil, err
	}
	b, err = New(deliverTo(&a), opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// NewLocal bridges root within the process and returns its mirror, usually
// a *Proxy. It is mostly useful for tests and for checking that a graph
// survives the trip through the wire encoding.
func NewLocal(root any, clone CloneFunc, opts ...Option) (any, error) {
	server, client, err := Pipe(clone, opts...)
	if err != nil {
		return nil, err
	}
	if err := server.SendRoot(root); err != nil {
		return nil, err
	}
	if err := server.SendNow(); err != nil {
		return nil, err
	}
	return client.Root().Result()
}
