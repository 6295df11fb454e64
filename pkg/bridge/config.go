package bridge

import (
	"log/slog"
	"time"

	"github.com/vango-dev/objbridge/internal/clock"
	"github.com/vango-dev/objbridge/pkg/protocol"
)

// SendFunc delivers an outgoing message to the peer. An error is treated
// as a broken channel and closes the bridge.
type SendFunc func(m *protocol.Message) error

// Config holds configuration for a Bridge.
type Config struct {
	// SendMessage delivers outgoing messages. Required.
	SendMessage SendFunc

	// Throttle delays flushes so that changes made within the window are
	// sent as one message. Zero flushes as soon as the triggering
	// operation completes.
	// Default: 0.
	Throttle time.Duration

	// Logger receives bridge logs. A bridge_id attribute is added.
	// Default: slog.Default().
	Logger *slog.Logger

	// Metrics records Prometheus metrics. Several bridges may share one
	// instance.
	// Default: nil (no metrics).
	Metrics *Metrics

	// TracerName names the OpenTelemetry tracer used for call spans.
	// Default: "objbridge".
	TracerName string

	// OnError is called with errors of flushes that have no caller to
	// return them to, such as timer-driven flushes.
	OnError func(err error)

	// ID identifies the bridge in logs and traces.
	// Default: a new ULID.
	ID string

	clock clock.Clock
}

// Option configures a Bridge.
type Option func(*Config)

// WithThrottle sets the flush delay.
func WithThrottle(d time.Duration) Option {
	return func(c *Config) {
		c.Throttle = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithErrorHandler sets the handler for asynchronous flush errors.
func WithErrorHandler(fn func(err error)) Option {
	return func(c *Config) {
		c.OnError = fn
	}
}

// WithID sets the bridge identifier.
func WithID(id string) Option {
	return func(c *Config) {
		c.ID = id
	}
}

func withClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.clock = clk
	}
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TracerName == "" {
		c.TracerName = defaultTracerName
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
}
