package overlay

import (
	"errors"
	"fmt"
	"reflect"
)

// ID identifies a bridged object within one bridge. Zero is never assigned.
type ID uint64

// Overlay leaf markers.
const (
	MarkUndefined = "u"
	MarkError     = "e"
)

// UndefinedValue is the type of Undefined.
type UndefinedValue struct{}

// Undefined stands for a slot that exists but holds no value. It is distinct
// from nil, which is transmitted as null.
var Undefined = UndefinedValue{}

// String implements fmt.Stringer.
func (UndefinedValue) String() string { return "undefined" }

// ErrDesync is matched by every error reporting that the two endpoints of a
// bridge no longer agree on the shape of the data they exchange.
var ErrDesync = errors.New("overlay: endpoints desynchronized")

// DesyncError describes a raw value or identifier that does not match its
// overlay.
type DesyncError struct {
	Reason string
}

// Error implements error.
func (e *DesyncError) Error() string {
	return "overlay: endpoints desynchronized: " + e.Reason
}

// Unwrap returns ErrDesync.
func (e *DesyncError) Unwrap() error { return ErrDesync }

func desyncf(format string, args ...any) error {
	return &DesyncError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedTypeError is returned when a value contains something the
// codec cannot express, such as a function or a channel.
type UnsupportedTypeError struct {
	Type reflect.Type
}

// Error implements error.
func (e *UnsupportedTypeError) Error() string {
	return "overlay: unsupported value of type " + e.Type.String()
}

// RemoteError is an error value reconstructed from the other side of a
// bridge. Application errors thrown by bridged methods arrive as
// *RemoteError.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
}

// Error returns the original error message.
func (e *RemoteError) Error() string { return e.Message }

// errorFields is the transmissible form of an error.
func errorFields(err error) map[string]any {
	out := map[string]any{
		"name":    errorName(err),
		"message": err.Error(),
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Stack != "" {
		out["stack"] = re.Stack
	}
	return out
}

func errorName(err error) string {
	if re, ok := err.(*RemoteError); ok && re.Name != "" {
		return re.Name
	}
	if named, ok := err.(interface{ ErrorName() string }); ok {
		return named.ErrorName()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() + "." + t.Name() {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors", "errors.joinError":
		return "Error"
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}

func remoteError(raw any) (*RemoteError, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, desyncf("error marker over %T", raw)
	}
	out := &RemoteError{}
	out.Name, _ = m["name"].(string)
	out.Message, _ = m["message"].(string)
	out.Stack, _ = m["stack"].(string)
	return out, nil
}

// AsID converts an identifier leaf to an ID. Wire decoders may produce any
// integer kind, or float64 after a JSON hop.
func AsID(v any) (ID, bool) {
	switch n := v.(type) {
	case ID:
		return n, n != 0
	case uint64:
		return ID(n), n != 0
	case int64:
		return ID(n), n > 0
	case int:
		return ID(n), n > 0
	case uint32:
		return ID(n), n != 0
	case int32:
		return ID(n), n > 0
	case uint:
		return ID(n), n != 0
	case float64:
		if n > 0 && n == float64(uint64(n)) {
			return ID(n), true
		}
	}
	return 0, false
}
