package protocol

import (
	"strconv"
	"strings"

	"github.com/vango-dev/objbridge/pkg/overlay"
)

// ObjectID identifies a bridged object within one bridge.
type ObjectID = overlay.ID

// Message is the unit of transmission between two bridge endpoints.
type Message struct {
	Creates []Create   `json:"creates,omitempty"`
	Updates []Update   `json:"updates,omitempty"`
	Deletes []ObjectID `json:"deletes,omitempty"`
	Calls   []Call     `json:"calls,omitempty"`
	Returns []Return   `json:"returns,omitempty"`
	Events  []Event    `json:"events,omitempty"`
	Root    *Root      `json:"root,omitempty"`
}

// Create announces a newly reachable object. Value holds the initial
// property values keyed by property name.
type Create struct {
	ID          ObjectID `json:"id"`
	Type        string   `json:"type"`
	MethodNames []string `json:"methodNames"`
	Value       any      `json:"value"`
	Overlay     any      `json:"overlay,omitempty"`
}

// Update carries the new value of one property.
type Update struct {
	ID           ObjectID `json:"id"`
	PropertyName string   `json:"propertyName"`
	Value        any      `json:"value"`
	Overlay      any      `json:"overlay,omitempty"`
}

// Call asks the other side to invoke a method. Params are plain data.
type Call struct {
	ID     ObjectID `json:"id"`
	CallID uint64   `json:"callId"`
	Method string   `json:"method"`
	Params []any    `json:"params"`
}

// Return resolves (or, with Failed, rejects) the call with the same CallID.
type Return struct {
	CallID  uint64 `json:"callId"`
	Failed  bool   `json:"failed,omitempty"`
	Value   any    `json:"value"`
	Overlay any    `json:"overlay,omitempty"`
}

// Event is emitted by the object with the given identifier.
type Event struct {
	ID      ObjectID `json:"id"`
	Name    string   `json:"name"`
	Value   any      `json:"value"`
	Overlay any      `json:"overlay,omitempty"`
}

// Root announces the root value of the bridge.
type Root struct {
	Value   any `json:"value"`
	Overlay any `json:"overlay,omitempty"`
}

// Empty reports whether m carries no records at all.
func (m *Message) Empty() bool {
	return m == nil || (len(m.Creates) == 0 &&
		len(m.Updates) == 0 &&
		len(m.Deletes) == 0 &&
		len(m.Calls) == 0 &&
		len(m.Returns) == 0 &&
		len(m.Events) == 0 &&
		m.Root == nil)
}

// Summary describes m compactly for logs, e.g. "+2 ~1 c1 root".
func (m *Message) Summary() string {
	if m.Empty() {
		return "empty"
	}
	var parts []string
	add := func(prefix string, n int) {
		if n > 0 {
			parts = append(parts, prefix+strconv.Itoa(n))
		}
	}
	add("+", len(m.Creates))
	add("~", len(m.Updates))
	add("-", len(m.Deletes))
	add("c", len(m.Calls))
	add("r", len(m.Returns))
	add("e", len(m.Events))
	if m.Root != nil {
		parts = append(parts, "root")
	}
	return strings.Join(parts, " ")
}
