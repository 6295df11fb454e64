package bridge

import (
	"context"
	"sync"
)

// Future is the eventual result of a remote call or of the peer's root
// announcement. It settles at most once.
type Future struct {
	done    chan struct{}
	once    sync.Once
	value   any
	err     error
	settled func(value any, err error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.settle(nil, err)
	return f
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the outcome, or ErrPending if the future has not settled.
func (f *Future) Result() (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		return nil, ErrPending
	}
}

// Await blocks until the future settles or ctx is done.
//
// Do not Await from a watch or event callback of the same bridge pair when
// messages are delivered synchronously: the result can only arrive after
// the callback returns.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(value any, err error) bool {
	first := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		first = true
	})
	if first && f.settled != nil {
		f.settled(value, err)
	}
	return first
}
