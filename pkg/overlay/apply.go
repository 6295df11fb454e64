package overlay

// Lookup returns the local stand-in for a bridged object identifier.
type Lookup func(id ID) (any, bool)

// Apply rebuilds a value received from the other side of a bridge. raw must
// have exactly the shape ov was computed from; any mismatch, and any
// reference to an identifier lookup does not know, is reported as a
// *DesyncError.
func Apply(raw any, ov any, lookup Lookup) (any, error) {
	switch o := ov.(type) {
	case nil:
		return raw, nil

	case string:
		switch o {
		case MarkUndefined:
			return Undefined, nil
		case MarkError:
			re, err := remoteError(raw)
			if err != nil {
				return nil, err
			}
			return re, nil
		}
		return nil, desyncf("unknown marker %q", o)

	case []any:
		list, ok := raw.([]any)
		if !ok {
			return nil, desyncf("sequence overlay over %T", raw)
		}
		if len(list) != len(o) {
			return nil, desyncf("sequence overlay of length %d over %d values", len(o), len(list))
		}
		out := make([]any, len(list))
		for i, v := range list {
			if o[i] == nil {
				out[i] = v
				continue
			}
			applied, err := Apply(v, o[i], lookup)
			if err != nil {
				return nil, err
			}
			out[i] = applied
		}
		return out, nil

	case map[string]any:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, desyncf("keyed overlay over %T", raw)
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		for k, sub := range o {
			if sub == nil {
				continue
			}
			v, ok := m[k]
			if !ok {
				return nil, desyncf("overlay key %q missing from value", k)
			}
			applied, err := Apply(v, sub, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = applied
		}
		return out, nil
	}

	id, ok := AsID(ov)
	if !ok {
		return nil, desyncf("unexpected overlay leaf %T", ov)
	}
	if lookup == nil {
		return nil, desyncf("reference to object %d without a proxy table", id)
	}
	obj, ok := lookup(id)
	if !ok {
		return nil, desyncf("reference to unknown object %d", id)
	}
	return obj, nil
}
