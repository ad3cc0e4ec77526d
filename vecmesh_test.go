package vecmesh_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecmesh"
	"github.com/hupe1980/vecmesh/distance"
	"github.com/hupe1980/vecmesh/knowledge"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/shard"
	"github.com/hupe1980/vecmesh/vectorstore"
)

func testVector(dim, seed int) []float32 {
	vec := make([]float32, dim)
	for j := range vec {
		vec[j] = float32((seed*31+j*17)%100)/50.0 - 1.0
	}
	return vec
}

func newTestMesh(t *testing.T, optFns ...vecmesh.Option) *vecmesh.Mesh {
	t.Helper()

	opts := append([]vecmesh.Option{
		vecmesh.WithDimensions(4),
		vecmesh.WithMetric(distance.MetricCosine),
	}, optFns...)

	mesh, err := vecmesh.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mesh.Close() })

	return mesh
}

func TestMeshVectorCRUD(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	v := &vectorstore.Vector{
		ID:       "v1",
		Values:   []float32{1, 0, 0, 0},
		Metadata: metadata.Metadata{"category": "test"},
	}
	require.NoError(t, mesh.Insert(ctx, v))

	got, err := mesh.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, v.Values, got.Values)
	assert.Equal(t, v.Metadata, got.Metadata)

	require.NoError(t, mesh.Update(ctx, &vectorstore.Vector{
		ID:     "v1",
		Values: []float32{0, 1, 0, 0},
	}))

	got, err = mesh.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 0}, got.Values)

	require.NoError(t, mesh.Delete(ctx, "v1"))

	_, err = mesh.Get(ctx, "v1")
	require.ErrorIs(t, err, vecmesh.ErrNotFound)
}

func TestMeshErrorTranslation(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))

	t.Run("already exists", func(t *testing.T) {
		err := mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}})
		assert.ErrorIs(t, err, vecmesh.ErrAlreadyExists)
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		err := mesh.Insert(ctx, &vectorstore.Vector{ID: "v2", Values: []float32{1, 0}})
		assert.ErrorIs(t, err, vecmesh.ErrInvalidDimensions)

		// The typed cause stays reachable for its fields.
		var derr *vectorstore.ErrInvalidDimensions
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 4, derr.Expected)
	})

	t.Run("not found", func(t *testing.T) {
		assert.ErrorIs(t, mesh.Delete(ctx, "missing"), vecmesh.ErrNotFound)
	})

	t.Run("storage limit", func(t *testing.T) {
		limited := newTestMesh(t, vecmesh.WithKnowledgeLimit(1))

		require.NoError(t, limited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k1"}, "a"))
		err := limited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k2"}, "a")
		assert.ErrorIs(t, err, vecmesh.ErrStorageLimitReached)
	})

	t.Run("memory limit", func(t *testing.T) {
		// Four dimensions cost 16 bytes per vector.
		limited := newTestMesh(t, vecmesh.WithResourceLimits(resource.Config{MemoryLimitBytes: 16}))

		require.NoError(t, limited.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))
		assert.Equal(t, int64(16), limited.Stats().MemoryBytes)

		err := limited.Insert(ctx, &vectorstore.Vector{ID: "v2", Values: []float32{0, 1, 0, 0}})
		assert.ErrorIs(t, err, vecmesh.ErrStorageLimitReached)
	})
}

func TestMeshSearchFluent(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{
		ID:       "close",
		Values:   []float32{0.95, 0.31224990, 0, 0},
		Metadata: metadata.Metadata{"group": "a"},
	}))
	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{
		ID:       "far",
		Values:   []float32{0.5, 0.86602540, 0, 0},
		Metadata: metadata.Metadata{"group": "b"},
	}))

	query := []float32{1, 0, 0, 0}

	t.Run("threshold", func(t *testing.T) {
		results, err := mesh.Search(query).Limit(10).Threshold(0.9).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "close", results[0].ID)
	})

	t.Run("filter", func(t *testing.T) {
		results, err := mesh.Search(query).Filter(metadata.Filter{"group": "b"}).Execute(ctx)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "far", results[0].ID)
	})

	t.Run("first", func(t *testing.T) {
		best, err := mesh.Search(query).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "close", best.ID)
	})

	t.Run("stream early termination", func(t *testing.T) {
		seen := 0
		for result, err := range mesh.Search(query).Limit(10).Stream(ctx) {
			require.NoError(t, err)
			require.NotEmpty(t, result.ID)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})

	t.Run("local only", func(t *testing.T) {
		n, err := mesh.Search(query).LocalOnly().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestMeshSearchFansOutToRemotes(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "local-1", Values: []float32{1, 0, 0, 0}}))

	mesh.AddNode("n2", router.ExecutorFunc(func(_ context.Context, _ router.Request) ([]vectorstore.Result, error) {
		return []vectorstore.Result{{ID: "remote-1", Score: 0.99}}, nil
	}))

	results, err := mesh.Search([]float32{1, 0, 0, 0}).Limit(10).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "remote-1", results[0].ID)
	assert.Equal(t, "local-1", results[1].ID)
}

func TestMeshKnowledgeLifecycle(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	require.NoError(t, mesh.AddKnowledge(ctx, knowledge.Knowledge{
		ID:         "fact-1",
		Content:    "Paris is the capital of France",
		Tags:       []string{"geo"},
		Confidence: 0.9,
	}, "agent-a"))

	e, err := mesh.GetKnowledge(ctx, "fact-1", "agent-a")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France", e.Knowledge.Content)

	// agent-b has its own replica set until a merge.
	_, err = mesh.GetKnowledge(ctx, "fact-1", "agent-b")
	require.ErrorIs(t, err, vecmesh.ErrNotFound)

	require.NoError(t, mesh.MergeKnowledge(ctx, "agent-a", "agent-b"))

	e, err = mesh.GetKnowledge(ctx, "fact-1", "agent-b")
	require.NoError(t, err)
	assert.Equal(t, knowledge.VersionVector{"agent-a": 1}, e.Version)

	results := mesh.SearchKnowledge(ctx, knowledge.Query{Tags: []string{"geo"}}, "agent-b")
	require.Len(t, results, 1)

	require.NoError(t, mesh.DeleteKnowledge(ctx, "fact-1", "agent-b"))

	_, err = mesh.GetKnowledge(ctx, "fact-1", "agent-b")
	require.ErrorIs(t, err, vecmesh.ErrNotFound)

	// Tombstones are age-gated; a zero max-age prunes immediately.
	assert.Equal(t, 1, mesh.PruneTombstones(ctx, 0))
}

func TestMeshKnowledgeRelations(t *testing.T) {
	mesh := newTestMesh(t, vecmesh.WithLedger(ledger.NewMemory("agent-a")))
	ctx := context.Background()

	// Empty agent resolves to the ledger identity.
	require.NoError(t, mesh.AddKnowledge(ctx, knowledge.Knowledge{ID: "k1", Content: "base"}, ""))
	require.NoError(t, mesh.AddKnowledge(ctx, knowledge.Knowledge{ID: "k2", Content: "supports k1"}, "agent-a"))
	require.NoError(t, mesh.AddKnowledge(ctx, knowledge.Knowledge{ID: "k3", Content: "contradicts k1"}, "agent-a"))

	e, err := mesh.GetKnowledge(ctx, "k1", "agent-a")
	require.NoError(t, err)
	assert.Equal(t, knowledge.VersionVector{"agent-a": 1}, e.Version)

	require.NoError(t, mesh.LinkKnowledge(ctx, "k1", "supported-by", "k2"))
	require.NoError(t, mesh.LinkKnowledge(ctx, "k1", "supported-by", "k3"))
	// Linking the same edge twice is a no-op.
	require.NoError(t, mesh.LinkKnowledge(ctx, "k1", "supported-by", "k2"))

	related, err := mesh.RelatedKnowledge(ctx, "k1", "supported-by", "agent-a")
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "k2", related[0].Knowledge.ID)
	assert.Equal(t, "k3", related[1].Knowledge.ID)

	// Relations are weak: a tombstoned target drops out of resolution
	// without touching the link itself.
	require.NoError(t, mesh.DeleteKnowledge(ctx, "k3", "agent-a"))

	related, err = mesh.RelatedKnowledge(ctx, "k1", "supported-by", "agent-a")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "k2", related[0].Knowledge.ID)
}

func TestMeshRebalancing(t *testing.T) {
	mesh := newTestMesh(t, vecmesh.WithShardConfig(shard.Config{
		CurveDimensions:    2,
		CurveOrder:         8,
		CoordMin:           -1,
		CoordMax:           1,
		MaxShardSize:       50,
		MigrationBatchSize: 10,
	}))
	ctx := context.Background()

	for i := 0; i < 80; i++ {
		require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{
			ID:     fmt.Sprintf("v%d", i),
			Values: testVector(4, i),
		}))
	}

	require.NoError(t, mesh.CheckRebalancing(ctx))

	require.Eventually(t, func() bool {
		status := mesh.MigrationStatus()
		return len(status) == 1 && status[0].State == shard.MigrationCompleted
	}, 5*time.Second, 10*time.Millisecond)

	stats := mesh.Stats()
	assert.Equal(t, 80, stats.Vectors)
	assert.Len(t, stats.ShardSizes, 2)

	// Every vector stays reachable across the split.
	for i := 0; i < 80; i++ {
		_, err := mesh.Get(ctx, fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}
}

func TestMeshNodeHealth(t *testing.T) {
	mesh := newTestMesh(t)

	mesh.UpdateNodeHealth("n2", router.NodeHealth{CPUUsage: 0.4, MemoryUsage: 0.3})

	health := mesh.AllNodeHealth()
	require.Contains(t, health, "n2")
	assert.Equal(t, 0.4, health["n2"].CPUUsage)
	assert.False(t, health["n2"].LastUpdate.IsZero())
}

func TestMeshStatsAndMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	mesh := newTestMesh(t, vecmesh.WithMetricsCollector(collector))
	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))
	require.NoError(t, mesh.AddKnowledge(ctx, knowledge.Knowledge{ID: "k1"}, "agent-a"))

	_, err := mesh.Search([]float32{1, 0, 0, 0}).Execute(ctx)
	require.NoError(t, err)

	stats := mesh.Stats()
	assert.Equal(t, 1, stats.Vectors)
	assert.Equal(t, map[string]int{"agent-a": 1}, stats.KnowledgeSizes)

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Counters["vector_inserts"])
	assert.Equal(t, int64(1), snap.Counters["knowledge_adds"])
	assert.Equal(t, int64(1), snap.Counters["router_cache_misses"])
}

func TestMeshPersistsThroughLedger(t *testing.T) {
	led := ledger.NewMemory("")
	mesh := newTestMesh(t, vecmesh.WithLedger(led))
	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))

	_, err := led.GetEntry(ctx, "vector", "v1")
	require.NoError(t, err)

	require.NoError(t, mesh.Delete(ctx, "v1"))

	_, err = led.GetEntry(ctx, "vector", "v1")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}
