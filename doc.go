// Package vecmesh provides a distributed vector-and-knowledge store for Go.
//
// Vecmesh stores high-dimensional vectors plus semi-structured knowledge
// records, with production-ready features including:
//
//   - Hilbert space-filling-curve sharding with locality-preserving placement
//   - Live shard splitting via resumable streaming migrations
//   - Circuit breaking and jittered retries on every remote path
//   - Conflict-free knowledge replication (version vectors + tombstones)
//   - Health-aware fan-out query routing with TTL result caching
//   - Tag and source lookups backed by a Roaring Bitmap inverted index
//   - Pluggable codecs and a ledger boundary for durable persistence
//
// # Quick Start
//
// Create a mesh and insert vectors:
//
//	ctx := context.Background()
//	mesh, err := vecmesh.New(
//	    vecmesh.WithDimensions(128),
//	    vecmesh.WithMetric(distance.MetricCosine),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer mesh.Close()
//
//	err = mesh.Insert(ctx, &vectorstore.Vector{
//	    ID:     "doc-1",
//	    Values: embedding,
//	    Metadata: metadata.Metadata{
//	        "category": "tech",
//	    },
//	})
//
// Search with the fluent API:
//
//	results, err := mesh.Search(query).
//	    Limit(10).
//	    Threshold(0.8).
//	    Filter(metadata.Filter{"category": "tech"}).
//	    Execute(ctx)
//
// Replicate knowledge between agents:
//
//	err = mesh.AddKnowledge(ctx, knowledge.Knowledge{
//	    ID:      "fact-1",
//	    Content: "Paris is the capital of France",
//	    Tags:    []string{"geo"},
//	}, "agent-a")
//	err = mesh.MergeKnowledge(ctx, "agent-a", "agent-b")
//
// # Placement Model
//
// Every vector maps to an ordinal on a Hilbert curve over the quantized
// vector space, and contiguous ordinal ranges form shards. Nearby vectors
// land on the same shard, so similarity queries touch few shards. When a
// shard outgrows its budget, a background migration streams half its range
// to a new shard in resumable batches; readers never lose sight of a
// vector mid-flight.
package vecmesh
