package vecmesh

import (
	"log/slog"

	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/codec"
	"github.com/hupe1980/vecmesh/distance"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/retry"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/shard"
)

type options struct {
	dimensions       int
	metric           distance.Metric
	schema           metadata.Schema
	shardConfig      shard.Config
	routerConfig     router.Config
	breakerConfig    breaker.Config
	retryStrategy    retry.Strategy
	knowledgeLimit   int
	resourceConfig   resource.Config
	codec            codec.Codec
	ledger           ledger.Ledger
	transport        shard.Transport
	metricsCollector *metrics.Collector
	logger           *Logger
}

// Option configures Mesh constructor behavior.
type Option func(*options)

// WithDimensions sets the vector dimensionality. All inserted vectors and
// queries must match it exactly.
func WithDimensions(dim int) Option {
	return func(o *options) {
		o.dimensions = dim
	}
}

// WithMetric sets the similarity metric used for search scoring.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithSchema declares expected formats for recognized metadata keys.
// Keys outside the schema pass through unvalidated.
func WithSchema(s metadata.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithShardConfig tunes placement: curve resolution, shard size budget,
// and migration batching.
func WithShardConfig(cfg shard.Config) Option {
	return func(o *options) {
		o.shardConfig = cfg
	}
}

// WithRouterConfig tunes query fan-out: parallelism, cache TTL, and
// sub-query timeouts.
func WithRouterConfig(cfg router.Config) Option {
	return func(o *options) {
		o.routerConfig = cfg
	}
}

// WithBreakerConfig tunes the circuit breakers guarding migrations and
// remote sub-queries.
func WithBreakerConfig(cfg breaker.Config) Option {
	return func(o *options) {
		o.breakerConfig = cfg
	}
}

// WithRetryStrategy tunes the backoff applied to transient failures.
func WithRetryStrategy(s retry.Strategy) Option {
	return func(o *options) {
		o.retryStrategy = s
	}
}

// WithKnowledgeLimit caps the entries per knowledge set, tombstones
// included.
func WithKnowledgeLimit(n int) Option {
	return func(o *options) {
		o.knowledgeLimit = n
	}
}

// WithResourceLimits bounds vector buffer memory, concurrent migrations,
// and batch transfer throughput. Zero fields leave the matching resource
// unlimited (migrations default to two in flight).
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithCodec configures the codec used for ledger entries and migration
// payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLedger sets the durable persistence boundary. Vector entries, shard
// placements, and migration cursors are written through it; a restarted
// mesh resumes from what the ledger holds.
//
// If unset, an in-process ledger is used.
func WithLedger(l ledger.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithTransport sets the transport migrations move batches over.
func WithTransport(t shard.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable collection.
//
// Example:
//
//	collector := metrics.NewCollector()
//	mesh, _ := vecmesh.New(vecmesh.WithMetricsCollector(collector))
//	// ... use mesh ...
//	snap := collector.Snapshot()
func WithMetricsCollector(c *metrics.Collector) Option {
	return func(o *options) {
		o.metricsCollector = c
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := vecmesh.NewJSONLogger(slog.LevelInfo)
//	mesh, _ := vecmesh.New(vecmesh.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dimensions: 128,
		codec:      codec.Default,
		logger:     NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
