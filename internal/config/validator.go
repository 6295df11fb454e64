package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "bridge.throttle_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Server.Address == "" {
		add("server.address", c.Server.Address, "must not be empty")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		add("server.path", c.Server.Path, "must start with /")
	}
	if c.Server.MetricsPath != "" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
		add("server.metrics_path", c.Server.MetricsPath, "must be empty or start with /")
	}
	if c.Server.MetricsPath != "" && c.Server.MetricsPath == c.Server.Path {
		add("server.metrics_path", c.Server.MetricsPath, "must differ from server.path")
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		add("server.shutdown_timeout_seconds", c.Server.ShutdownTimeoutSeconds, "must not be negative")
	}

	if u, err := url.Parse(c.Client.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		add("client.url", c.Client.URL, "must be a ws:// or wss:// URL")
	}
	if c.Client.TimeoutSeconds <= 0 {
		add("client.timeout_seconds", c.Client.TimeoutSeconds, "must be positive")
	}

	if c.Bridge.ThrottleMs < 0 {
		add("bridge.throttle_ms", c.Bridge.ThrottleMs, "must not be negative")
	}
	if c.Bridge.PingIntervalSeconds < 0 {
		add("bridge.ping_interval_seconds", c.Bridge.PingIntervalSeconds, "must not be negative")
	}
	if c.Bridge.ReadTimeoutSeconds <= 0 {
		add("bridge.read_timeout_seconds", c.Bridge.ReadTimeoutSeconds, "must be positive")
	} else if c.Bridge.PingIntervalSeconds >= c.Bridge.ReadTimeoutSeconds {
		add("bridge.ping_interval_seconds", c.Bridge.PingIntervalSeconds, "must be shorter than bridge.read_timeout_seconds")
	}
	if c.Bridge.WriteTimeoutSeconds <= 0 {
		add("bridge.write_timeout_seconds", c.Bridge.WriteTimeoutSeconds, "must be positive")
	}
	if c.Bridge.MaxMessageBytes <= 0 {
		add("bridge.max_message_bytes", c.Bridge.MaxMessageBytes, "must be positive")
	}

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		add("logging.level", c.Logging.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		add("logging.format", c.Logging.Format, "must be one of "+strings.Join(ValidLogFormats(), ", "))
	}

	return errs
}
