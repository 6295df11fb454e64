package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (B001-B009)
	// ============================================

	"B001": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Detail:     "One or more configuration values are out of range.",
		Suggestion: "Check objbridge.yaml and OBJBRIDGE_* environment variables.",
	},
	"B002": {
		Category: CategoryConfig,
		Message:  "Cannot read configuration file",
		Detail:   "The configuration file exists but could not be read or parsed as YAML.",
	},

	// ============================================
	// Connection Errors (B010-B019)
	// ============================================

	"B010": {
		Category: CategoryConnection,
		Message:  "Cannot connect to bridge server",
		Detail:   "The WebSocket handshake with the server failed.",
	},
	"B011": {
		Category: CategoryConnection,
		Message:  "Connection closed before the root arrived",
		Detail:   "The server accepted the connection but never announced a root object.",
	},
	"B012": {
		Category:   CategoryConnection,
		Message:    "Cannot listen on address",
		Detail:     "The server could not bind its listen address.",
		Suggestion: "Choose another address with --addr or server.address.",
	},
	"B013": {
		Category: CategoryConnection,
		Message:  "Timed out",
		Detail:   "The operation did not complete within client.timeout_seconds.",
	},

	// ============================================
	// Protocol Errors (B020-B029)
	// ============================================

	"B020": {
		Category: CategoryProtocol,
		Message:  "Bridge desynchronized",
		Detail:   "A message referred to state this side does not have. The bridge was closed and must be re-established.",
	},

	// ============================================
	// Call Errors (B030-B039)
	// ============================================

	"B030": {
		Category: CategoryCall,
		Message:  "Remote call failed",
		Detail:   "The method ran on the server and returned an error.",
	},
	"B031": {
		Category: CategoryCall,
		Message:  "No such method",
		Detail:   "The root object does not expose the requested method.",
	},
	"B032": {
		Category:   CategoryCLI,
		Message:    "Invalid call argument",
		Detail:     "Call arguments are parsed as JSON values.",
		Suggestion: `Quote strings as JSON, e.g. objbridge call greet '"world"'`,
	},
}
