// Package vecmesh provides a distributed vector-and-knowledge store.
//
// This file implements a fluent builder API for creating and configuring Mesh instances.
// The builder is immutable - each method returns a new builder with the updated configuration.
package vecmesh

import (
	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/codec"
	"github.com/hupe1980/vecmesh/distance"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/shard"
)

// Builder creates a new Mesh builder with the specified dimension.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents
// accidental state sharing.
//
// Example:
//
//	mesh, err := vecmesh.Builder(128).
//	    Cosine().
//	    MaxShardSize(10000).
//	    KnowledgeLimit(50000).
//	    Build()
func Builder(dimension int) MeshBuilder {
	return MeshBuilder{
		dimension: dimension,
	}
}

// MeshBuilder is an immutable fluent builder for creating Mesh instances.
type MeshBuilder struct {
	dimension      int
	metric         distance.Metric
	schema         metadata.Schema
	shardConfig    shard.Config
	routerConfig   router.Config
	breakerConfig  breaker.Config
	knowledgeLimit int
	resourceConfig resource.Config
	codec          codec.Codec
	ledger         ledger.Ledger
	transport      shard.Transport
	metrics        *metrics.Collector
	logger         *Logger
}

// Cosine sets the similarity metric to cosine similarity.
func (b MeshBuilder) Cosine() MeshBuilder {
	b.metric = distance.MetricCosine
	return b
}

// Euclidean sets the similarity metric to normalized Euclidean distance.
func (b MeshBuilder) Euclidean() MeshBuilder {
	b.metric = distance.MetricEuclidean
	return b
}

// DotProduct sets the similarity metric to the raw dot product.
func (b MeshBuilder) DotProduct() MeshBuilder {
	b.metric = distance.MetricDot
	return b
}

// Schema declares expected formats for recognized metadata keys.
func (b MeshBuilder) Schema(s metadata.Schema) MeshBuilder {
	b.schema = s
	return b
}

// ShardConfig replaces the full placement configuration.
func (b MeshBuilder) ShardConfig(cfg shard.Config) MeshBuilder {
	b.shardConfig = cfg
	return b
}

// MaxShardSize sets the per-shard vector budget that triggers splitting.
func (b MeshBuilder) MaxShardSize(n int) MeshBuilder {
	b.shardConfig.MaxShardSize = n
	return b
}

// RouterConfig replaces the full fan-out configuration.
func (b MeshBuilder) RouterConfig(cfg router.Config) MeshBuilder {
	b.routerConfig = cfg
	return b
}

// BreakerConfig tunes the circuit breakers guarding migrations and remote
// sub-queries.
func (b MeshBuilder) BreakerConfig(cfg breaker.Config) MeshBuilder {
	b.breakerConfig = cfg
	return b
}

// KnowledgeLimit caps the entries per knowledge set.
func (b MeshBuilder) KnowledgeLimit(n int) MeshBuilder {
	b.knowledgeLimit = n
	return b
}

// ResourceLimits bounds vector buffer memory, concurrent migrations, and
// batch transfer throughput.
func (b MeshBuilder) ResourceLimits(cfg resource.Config) MeshBuilder {
	b.resourceConfig = cfg
	return b
}

// Codec sets the codec used for ledger entries and migration payloads.
func (b MeshBuilder) Codec(c codec.Codec) MeshBuilder {
	b.codec = c
	return b
}

// Ledger sets the durable persistence boundary.
func (b MeshBuilder) Ledger(l ledger.Ledger) MeshBuilder {
	b.ledger = l
	return b
}

// Transport sets the transport migrations move batches over.
func (b MeshBuilder) Transport(t shard.Transport) MeshBuilder {
	b.transport = t
	return b
}

// Metrics sets the metrics collector.
func (b MeshBuilder) Metrics(c *metrics.Collector) MeshBuilder {
	b.metrics = c
	return b
}

// Logger sets the structured logger.
func (b MeshBuilder) Logger(l *Logger) MeshBuilder {
	b.logger = l
	return b
}

// Build creates the Mesh.
func (b MeshBuilder) Build() (*Mesh, error) {
	optFns := []Option{
		WithDimensions(b.dimension),
		WithMetric(b.metric),
		WithShardConfig(b.shardConfig),
		WithRouterConfig(b.routerConfig),
		WithBreakerConfig(b.breakerConfig),
		WithKnowledgeLimit(b.knowledgeLimit),
		WithResourceLimits(b.resourceConfig),
	}

	if b.schema != nil {
		optFns = append(optFns, WithSchema(b.schema))
	}
	if b.codec != nil {
		optFns = append(optFns, WithCodec(b.codec))
	}
	if b.ledger != nil {
		optFns = append(optFns, WithLedger(b.ledger))
	}
	if b.transport != nil {
		optFns = append(optFns, WithTransport(b.transport))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}

	return New(optFns...)
}
