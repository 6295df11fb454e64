package protocol

import "errors"

// MaxValueDepth limits the nesting depth of values, overlays and call
// parameters carried by a message. The overlay codec recurses over these
// trees, so a hostile peer must not be able to nest them arbitrarily.
const MaxValueDepth = 100

// ErrMaxDepthExceeded is wrapped when a value nests deeper than
// MaxValueDepth.
var ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")

// depthContext tracks the current depth while walking a value.
type depthContext struct {
	current int
	max     int
}

func newDepthContext(max int) *depthContext {
	return &depthContext{max: max}
}

// enter increments the depth and fails if the limit would be exceeded.
// The depth is only incremented on success.
func (dc *depthContext) enter() error {
	if dc.current >= dc.max {
		return ErrMaxDepthExceeded
	}
	dc.current++
	return nil
}

func (dc *depthContext) leave() {
	dc.current--
}

// walk checks the nesting depth of a generic value tree.
func (dc *depthContext) walk(v any) error {
	switch v := v.(type) {
	case map[string]any:
		if err := dc.enter(); err != nil {
			return err
		}
		defer dc.leave()
		for _, e := range v {
			if err := dc.walk(e); err != nil {
				return err
			}
		}
	case []any:
		if err := dc.enter(); err != nil {
			return err
		}
		defer dc.leave()
		for _, e := range v {
			if err := dc.walk(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkDepth reports whether any of values nests deeper than max.
func checkDepth(max int, values ...any) error {
	for _, v := range values {
		if err := newDepthContext(max).walk(v); err != nil {
			return err
		}
	}
	return nil
}
