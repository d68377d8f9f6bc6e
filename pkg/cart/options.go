package cart

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "@GoMarketplace:products"

const (
	defaultWriteTimeout = 5 * time.Second
	defaultQueueSize    = 16
)

type options struct {
	key          string
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	writeTimeout time.Duration
	queueSize    int
}

func defaultOptions() options {
	return options{
		key:          DefaultKey,
		writeTimeout: defaultWriteTimeout,
		queueSize:    defaultQueueSize,
	}
}

// Option configures a Store.
type Option func(*options)

// WithKey sets the storage key. Empty keys are ignored.
func WithKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.key = key
		}
	}
}

// WithLogger sets the logger used for hydration and write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics attaches Prometheus metrics to the store.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer used for hydration and persist spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithWriteTimeout bounds each storage write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithQueueSize sets how many snapshots may wait for the writer before the
// oldest pending one is superseded.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}
