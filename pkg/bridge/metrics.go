package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/objbridge/pkg/protocol"
)

// MetricsConfig configures bridge metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "objbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures bridge metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the call duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "objbridge",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors shared by a set of bridges.
// A nil *Metrics records nothing.
type Metrics struct {
	bridgesOpen    prometheus.Gauge
	messagesTotal  *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	objectsTracked prometheus.Gauge
	callsPending   prometheus.Gauge
	callsTotal     *prometheus.CounterVec
	callDuration   prometheus.Histogram
	flushErrors    prometheus.Counter
	protocolErrors prometheus.Counter
}

// NewMetrics registers the bridge collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		bridgesOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridges_open",
			Help:        "Number of open bridges",
			ConstLabels: config.ConstLabels,
		}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_total",
			Help:        "Total number of bridge messages by direction",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		recordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "records_total",
			Help:        "Total number of bridge records by direction and kind",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "kind"}),

		objectsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "objects_tracked",
			Help:        "Number of objects announced to peers",
			ConstLabels: config.ConstLabels,
		}),

		callsPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_pending",
			Help:        "Number of outgoing calls awaiting a return",
			ConstLabels: config.ConstLabels,
		}),

		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of settled outgoing calls by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Time from issuing a call to its return",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_errors_total",
			Help:        "Total number of flushes rolled back because of encoding errors",
			ConstLabels: config.ConstLabels,
		}),

		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_errors_total",
			Help:        "Total number of bridges closed by protocol desynchronisation",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) bridgeOpened() {
	if m != nil {
		m.bridgesOpen.Inc()
	}
}

func (m *Metrics) bridgeClosed() {
	if m != nil {
		m.bridgesOpen.Dec()
	}
}

func (m *Metrics) message(direction string, msg *protocol.Message) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(direction).Inc()
	add := func(kind string, n int) {
		if n > 0 {
			m.recordsTotal.WithLabelValues(direction, kind).Add(float64(n))
		}
	}
	add("create", len(msg.Creates))
	add("update", len(msg.Updates))
	add("delete", len(msg.Deletes))
	add("call", len(msg.Calls))
	add("return", len(msg.Returns))
	add("event", len(msg.Events))
	if msg.Root != nil {
		add("root", 1)
	}
}

func (m *Metrics) objectsDelta(n int) {
	if m != nil && n != 0 {
		m.objectsTracked.Add(float64(n))
	}
}

func (m *Metrics) callStarted() {
	if m != nil {
		m.callsPending.Inc()
	}
}

func (m *Metrics) callSettled(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.callsPending.Dec()
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.callsTotal.WithLabelValues(outcome).Inc()
	m.callDuration.Observe(d.Seconds())
}

func (m *Metrics) callRejected() {
	if m != nil {
		m.callsTotal.WithLabelValues("rejected").Inc()
	}
}

func (m *Metrics) flushFailed() {
	if m != nil {
		m.flushErrors.Inc()
	}
}

func (m *Metrics) protocolError() {
	if m != nil {
		m.protocolErrors.Inc()
	}
}
