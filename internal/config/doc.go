// Package config loads configuration for the objbridge command.
//
// Values come from, in increasing priority: built-in defaults, the file
// objbridge.yaml (in the working directory or the user config directory),
// OBJBRIDGE_* environment variables and command-line flags bound by the
// caller.
//
// # Configuration File Structure
//
//	server:
//	  address: ":8080"
//	  path: /ws
//	  metrics_path: /metrics
//	  allowed_origins: ["https://example.com"]
//	client:
//	  url: ws://localhost:8080/ws
//	  timeout_seconds: 10
//	bridge:
//	  throttle_ms: 16
//	  ping_interval_seconds: 30
//	logging:
//	  level: info
//	  format: text
//
// Nested keys map to environment variables with underscores:
// OBJBRIDGE_BRIDGE_THROTTLE_MS=50.
//
// # Usage
//
//	v, err := config.New("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load(v)
package config
