package vecmesh_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecmesh"
	"github.com/hupe1980/vecmesh/vectorstore"
)

// TestNoGoroutineLeaks verifies that the background migration scheduler
// terminates cleanly when Close() is called.
func TestNoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)

	before := runtime.NumGoroutine()

	mesh, err := vecmesh.New(vecmesh.WithDimensions(4))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{
			ID:     string(rune('a' + i)),
			Values: testVector(4, i),
		}))
	}

	require.NoError(t, mesh.Close())

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	after := runtime.NumGoroutine()

	// Allow small variance from runtime background goroutines.
	assert.LessOrEqual(t, after, before+2,
		"goroutines leaked: before=%d after=%d", before, after)
}

func TestCloseIsIdempotent(t *testing.T) {
	mesh, err := vecmesh.New(vecmesh.WithDimensions(4))
	require.NoError(t, err)

	require.NoError(t, mesh.Close())
	require.NoError(t, mesh.Close())

	var nilMesh *vecmesh.Mesh
	assert.NoError(t, nilMesh.Close())
}

func TestOperationsAfterCloseStillServeReads(t *testing.T) {
	mesh, err := vecmesh.New(vecmesh.WithDimensions(4))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mesh.Insert(ctx, &vectorstore.Vector{ID: "v1", Values: []float32{1, 0, 0, 0}}))

	require.NoError(t, mesh.Close())

	// Close stops background migration work, not the in-memory store.
	got, err := mesh.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
}
