// Package overlay implements the value codec used by the object bridge.
//
// A value travelling through a bridge may contain things the message channel
// cannot carry directly: references to bridged objects, undefined slots and
// error values. Make computes an overlay, a sparse shadow tree that marks
// where a value deviates from plain data. Strip turns the value into a
// transmissible copy with the deviating leaves neutralised, and Apply
// rebuilds the original shape on the receiving side.
//
// # Overlay Shape
//
// Overlays are built from the same generic types the wire decoders produce:
//
//	nil             no deviation below this point
//	"u"             the value is Undefined
//	"e"             the value is an error, stripped to {name, message, stack}
//	ID              a reference to the bridged object with that identifier
//	[]any           a sequence; nil at positions that do not deviate
//	map[string]any  a keyed structure; only deviating keys are present
//
// Branches without deviations are pruned, so the overlay of a plain value is
// nil and overlays are usually much smaller than the values they describe.
//
// # Example
//
//	value := map[string]any{"owner": user, "tags": []string{"a"}}
//	ov, _ := overlay.Make(value, registry.Resolve) // {"owner": 3}
//	raw, _ := overlay.Strip(value, ov)             // {"owner": nil, "tags": ["a"]}
//	// ... raw and ov cross the channel ...
//	local, _ := overlay.Apply(raw, ov, proxies.Lookup)
//
// Apply treats any disagreement between raw and overlay as desynchronisation
// of the two endpoints and reports a *DesyncError.
package overlay
