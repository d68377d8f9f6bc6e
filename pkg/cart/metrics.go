package cart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures cart metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "gomarketplace").
	Namespace string

	// Subsystem is the metrics subsystem (default: "cart").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for write duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures cart metrics.
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

// WithBuckets sets the write duration histogram buckets.
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
		Namespace: "gomarketplace",
		Subsystem: "cart",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for a Store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	writes        *prometheus.CounterVec
	superseded    prometheus.Counter
	writeDuration prometheus.Histogram
	lines         prometheus.Gauge
	units         prometheus.Gauge
	hydrations    *prometheus.CounterVec
}

// NewMetrics creates and registers cart metrics.
//
// Metrics collected:
//   - gomarketplace_cart_operations_total: operations by op and result (changed, noop)
//   - gomarketplace_cart_persist_writes_total: storage writes by result (ok, error)
//   - gomarketplace_cart_persist_superseded_total: pending snapshots replaced before being written
//   - gomarketplace_cart_persist_write_duration_seconds: storage write latency
//   - gomarketplace_cart_lines: distinct products in the cart
//   - gomarketplace_cart_units: total quantity in the cart
//   - gomarketplace_cart_hydrations_total: hydrations by result (loaded, empty, malformed, error)
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of cart operations",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "result"}),

		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_writes_total",
			Help:        "Total number of cart snapshots written to storage",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		superseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_superseded_total",
			Help:        "Pending snapshots replaced by a newer one before being written",
			ConstLabels: config.ConstLabels,
		}),

		writeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_write_duration_seconds",
			Help:        "Storage write duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		lines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "lines",
			Help:        "Number of distinct products in the cart",
			ConstLabels: config.ConstLabels,
		}),

		units: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "units",
			Help:        "Total quantity across cart lines",
			ConstLabels: config.ConstLabels,
		}),

		hydrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydrations_total",
			Help:        "Cart hydrations from storage by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
	}
}

func (m *Metrics) recordOp(op string, changed bool) {
	if m == nil {
		return
	}
	result := "noop"
	if changed {
		result = "changed"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) recordWrite(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(result).Inc()
	m.writeDuration.Observe(d.Seconds())
}

func (m *Metrics) recordSuperseded() {
	if m == nil {
		return
	}
	m.superseded.Inc()
}

func (m *Metrics) recordCart(c Cart) {
	if m == nil {
		return
	}
	m.lines.Set(float64(c.Lines()))
	m.units.Set(float64(c.Units()))
}

func (m *Metrics) recordHydration(result string) {
	if m == nil {
		return
	}
	m.hydrations.WithLabelValues(result).Inc()
}
