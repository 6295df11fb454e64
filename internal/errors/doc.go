// Package errors provides structured, actionable error messages for the
// objbridge command.
//
// Each error carries a code, a category, a short message and optionally a
// longer explanation and a hint on how to fix it:
//
//	err := errors.New("B010").
//	    Wrap(dialErr).
//	    WithSuggestion("Start a server with: objbridge serve")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR B010: Cannot connect to bridge server
//	//
//	//   The WebSocket handshake with the server failed.
//	//
//	//   Cause: dial tcp 127.0.0.1:8080: connect: connection refused
//	//
//	//   Hint: Start a server with: objbridge serve
//
// # Error Categories
//
//   - config: invalid or unreadable configuration
//   - connection: transport failures
//   - protocol: the peers disagree about the object graph
//   - call: remote method calls that failed
//   - cli: bad command-line usage
package errors
