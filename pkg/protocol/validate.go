package protocol

import (
	"errors"
	"fmt"
)

// MaxMessageSize is the default limit for one encoded message.
const MaxMessageSize = 16 << 20

// ErrInvalidMessage is wrapped by every structural validation failure.
var ErrInvalidMessage = errors.New("protocol: invalid message")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidMessage}, args...)...)
}

func tooDeep(field string, i int, err error) error {
	return fmt.Errorf("%w: %s[%d]: %w", ErrInvalidMessage, field, i, err)
}

// Validate checks the structural invariants a receiver relies on:
// identifiers and call ids are non-zero, names are present, no object is
// created twice in one message and no value nests deeper than
// MaxValueDepth.
func (m *Message) Validate() error {
	if m == nil {
		return invalidf("nil message")
	}
	created := make(map[ObjectID]struct{}, len(m.Creates))
	for i, c := range m.Creates {
		if c.ID == 0 {
			return invalidf("creates[%d]: zero id", i)
		}
		if _, dup := created[c.ID]; dup {
			return invalidf("creates[%d]: object %d created twice", i, c.ID)
		}
		created[c.ID] = struct{}{}
		if c.Value != nil {
			if _, ok := c.Value.(map[string]any); !ok {
				return invalidf("creates[%d]: properties are %T, want a map", i, c.Value)
			}
		}
		if err := checkDepth(MaxValueDepth, c.Value, c.Overlay); err != nil {
			return tooDeep("creates", i, err)
		}
	}
	for i, u := range m.Updates {
		if u.ID == 0 {
			return invalidf("updates[%d]: zero id", i)
		}
		if u.PropertyName == "" {
			return invalidf("updates[%d]: missing property name", i)
		}
		if err := checkDepth(MaxValueDepth, u.Value, u.Overlay); err != nil {
			return tooDeep("updates", i, err)
		}
	}
	for i, id := range m.Deletes {
		if id == 0 {
			return invalidf("deletes[%d]: zero id", i)
		}
	}
	for i, c := range m.Calls {
		if c.ID == 0 {
			return invalidf("calls[%d]: zero id", i)
		}
		if c.CallID == 0 {
			return invalidf("calls[%d]: zero call id", i)
		}
		if c.Method == "" {
			return invalidf("calls[%d]: missing method", i)
		}
		if err := checkDepth(MaxValueDepth, c.Params); err != nil {
			return tooDeep("calls", i, err)
		}
	}
	for i, r := range m.Returns {
		if r.CallID == 0 {
			return invalidf("returns[%d]: zero call id", i)
		}
		if err := checkDepth(MaxValueDepth, r.Value, r.Overlay); err != nil {
			return tooDeep("returns", i, err)
		}
	}
	for i, e := range m.Events {
		if e.ID == 0 {
			return invalidf("events[%d]: zero id", i)
		}
		if e.Name == "" {
			return invalidf("events[%d]: missing name", i)
		}
		if err := checkDepth(MaxValueDepth, e.Value, e.Overlay); err != nil {
			return tooDeep("events", i, err)
		}
	}
	if m.Root != nil {
		if err := checkDepth(MaxValueDepth, m.Root.Value, m.Root.Overlay); err != nil {
			return fmt.Errorf("%w: root: %w", ErrInvalidMessage, err)
		}
	}
	return nil
}
