package vecmesh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecmesh"
	"github.com/hupe1980/vecmesh/knowledge"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/vectorstore"
)

func TestBuilderBasic(t *testing.T) {
	mesh, err := vecmesh.Builder(4).
		Cosine().
		Build()
	require.NoError(t, err)
	defer mesh.Close()

	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))

	results, err := mesh.Search([]float32{1, 0, 0, 0}).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
}

func TestBuilderIsImmutable(t *testing.T) {
	base := vecmesh.Builder(4).Cosine()

	withLimit := base.KnowledgeLimit(1)

	unlimited, err := base.Build()
	require.NoError(t, err)
	defer unlimited.Close()

	limited, err := withLimit.Build()
	require.NoError(t, err)
	defer limited.Close()

	ctx := context.Background()

	require.NoError(t, limited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k1"}, "a"))
	err = limited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k2"}, "a")
	require.ErrorIs(t, err, vecmesh.ErrStorageLimitReached)

	// The base builder is unaffected by the derived one.
	require.NoError(t, unlimited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k1"}, "a"))
	require.NoError(t, unlimited.AddKnowledge(ctx, knowledge.Knowledge{ID: "k2"}, "a"))
}

func TestBuilderSchema(t *testing.T) {
	mesh, err := vecmesh.Builder(4).
		Cosine().
		Schema(metadata.Schema{"year": metadata.FieldTypeInt}).
		Build()
	require.NoError(t, err)
	defer mesh.Close()

	ctx := context.Background()

	err = mesh.Insert(ctx, &vectorstore.Vector{
		ID:       "v1",
		Values:   []float32{1, 0, 0, 0},
		Metadata: metadata.Metadata{"year": "not-a-year"},
	})
	require.ErrorIs(t, err, vecmesh.ErrValidationFailed)
}

func TestBuilderLedger(t *testing.T) {
	led := ledger.NewMemory("")

	mesh, err := vecmesh.Builder(4).
		Cosine().
		Ledger(led).
		Build()
	require.NoError(t, err)
	defer mesh.Close()

	ctx := context.Background()

	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))

	_, err = led.GetEntry(ctx, "vector", "v1")
	require.NoError(t, err)
}
