// Package protocol defines the messages exchanged by the two endpoints of an
// object bridge and their wire encodings.
//
// One Message is produced per flush cycle. Every field is optional; an
// absent field means nothing of that kind happened during the cycle:
//
//	creates  objects that became reachable (identifier, type, methods, initial properties)
//	updates  properties whose value changed since the last flush
//	deletes  identifiers of objects that are no longer reachable
//	calls    method invocations from the client side
//	returns  results of earlier calls, matched by call id
//	events   events emitted by bridged objects
//	root     the root value, announced once per bridge
//
// Values travel as a (value, overlay) pair produced by package overlay.
//
// # Ordering
//
// A receiver applies the groups in a fixed order: creates, deletes, updates,
// returns, events, root; calls are served afterwards. Senders never
// reference an identifier before the message that creates it.
//
// # Wire Formats
//
// Encode and Decode use CBOR (Core Deterministic Encoding). EncodeJSON and
// DecodeJSON exist for debugging and for JSON-only channels; identifiers in
// overlays come back as float64 there, which the overlay codec accepts.
//
// # File Structure
//
//   - message.go: message and record types
//   - validate.go: structural validation and limits
//   - wire.go: CBOR and JSON encoding, cloning
package protocol
