package main

import (
	"errors"
	"sync"

	"github.com/vango-dev/objbridge/pkg/bridge"
)

// Counter is the object graph served by `objbridge serve`. One Counter is
// shared by every connection, so its state lives behind a mutex and is
// exposed through computed properties.
type Counter struct {
	bridge.Object `events:"changed,reset"`

	Value bridge.Getter
	Label bridge.Getter

	mu    sync.Mutex
	value int
	label string
}

// NewCounter returns a counter at zero.
func NewCounter(label string) *Counter {
	c := &Counter{label: label}
	c.Value = func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.value, nil
	}
	c.Label = func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.label, nil
	}
	return c
}

// Increment adds by to the counter and returns the new value. A zero or
// missing argument counts as one.
func (c *Counter) Increment(by int) int {
	if by == 0 {
		by = 1
	}
	c.mu.Lock()
	c.value += by
	v := c.value
	c.mu.Unlock()

	c.Update()
	_ = c.Emit("changed", v)
	return v
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.value = 0
	c.mu.Unlock()

	c.Update()
	_ = c.Emit("reset", nil)
}

// Rename changes the label.
func (c *Counter) Rename(label string) error {
	if label == "" {
		return errors.New("label must not be empty")
	}
	c.mu.Lock()
	c.label = label
	c.mu.Unlock()

	c.Update()
	return nil
}

// Echo returns its arguments.
func (c *Counter) Echo(args ...any) []any {
	return args
}
