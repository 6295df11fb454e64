// Package codec holds the CBOR encoding configuration shared by the wire
// protocol, the stream transport and parameter conversion.
//
// Messages are encoded with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length items.
// The same logical message always produces the same bytes, which keeps
// message logs diffable.
//
// Decoding into `any` produces the generic value model used by the overlay
// codec: map[string]any for maps, []any for arrays and int64 for integers.
//
// Protocol types carry `json` struct tags only. fxamacker/cbor falls back to
// `json` tags when `cbor` tags are absent, so one tag controls field naming
// and omitempty for both the CBOR transports and JSON debugging output.
package codec
