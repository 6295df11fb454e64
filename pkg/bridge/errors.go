package bridge

import (
	"errors"
	"fmt"

	"github.com/vango-dev/objbridge/pkg/overlay"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

// Sentinel errors for bridge and call failures.
var (
	// ErrClosed is returned by operations on a closed bridge.
	ErrClosed = errors.New("bridge: closed")

	// ErrDeletedObject is wrapped by calls on objects that left the graph.
	ErrDeletedObject = errors.New("bridge: deleted object")

	// ErrNoSuchMethod is wrapped by calls to methods an object does not expose.
	ErrNoSuchMethod = errors.New("bridge: no such method")

	// ErrUnknownObject is returned when an object is not tracked by the
	// bridge it is addressed through.
	ErrUnknownObject = errors.New("bridge: unknown object")

	// ErrNotBridgeable is returned when a value that must be a bridged
	// object is not one.
	ErrNotBridgeable = errors.New("bridge: value is not bridgeable")

	// ErrUndeclaredEvent is returned when an object emits an event its
	// type does not declare.
	ErrUndeclaredEvent = errors.New("bridge: undeclared event")

	// ErrRootAlreadySent is returned by a second SendRoot.
	ErrRootAlreadySent = errors.New("bridge: root already sent")

	// ErrDuplicateRoot is reported when a peer announces a second root.
	ErrDuplicateRoot = errors.New("bridge: duplicate root announcement")

	// ErrPending is returned by Future.Result before the future settles.
	ErrPending = errors.New("bridge: result pending")

	// ErrDesync is matched by every ProtocolError. The bridge that
	// reports it has closed itself and must be re-established.
	ErrDesync = overlay.ErrDesync
)

// ProtocolError reports that the two endpoints no longer agree on the
// state of the object graph. It is fatal to the bridge.
type ProtocolError struct {
	Op  string
	Err error
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bridge: protocol error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error { return e.Err }

// Is reports ProtocolError as ErrDesync regardless of the cause.
func (e *ProtocolError) Is(target error) bool { return target == ErrDesync }

func protocolErrorf(op string, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Err: fmt.Errorf(format, args...)}
}

// CallError reports a call that could not be dispatched, either because the
// target object was deleted or because it has no such method.
type CallError struct {
	Method string
	Type   string
	ID     protocol.ObjectID
	Err    error
}

// Error returns the error message.
func (e *CallError) Error() string {
	target := e.Type
	if target == "" {
		target = fmt.Sprintf("#%d", e.ID)
	}
	if errors.Is(e.Err, ErrNoSuchMethod) {
		return fmt.Sprintf("bridge: object '%s' has no method '%s'", target, e.Method)
	}
	return fmt.Sprintf("bridge: calling method '%s' on deleted object '%s'", e.Method, target)
}

// Unwrap returns the underlying sentinel.
func (e *CallError) Unwrap() error { return e.Err }

// ErrorName names the error when it crosses a bridge.
func (e *CallError) ErrorName() string { return "CallError" }

// PanicError wraps a panic raised by a bridged method or getter.
type PanicError struct {
	Method string
	Value  any
	Stack  []byte
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("bridge: panic in %s: %v", e.Method, e.Value)
}

// ErrorName names the error when it crosses a bridge.
func (e *PanicError) ErrorName() string { return "PanicError" }
