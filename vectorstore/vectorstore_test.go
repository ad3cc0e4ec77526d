package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecmesh/distance"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/shard"
)

func newTestStore(t *testing.T, optFns ...Option) *Store {
	t.Helper()

	shards, err := shard.NewManager(shard.Config{
		CurveDimensions: 2,
		CurveOrder:      8,
		CoordMin:        -1,
		CoordMax:        1,
		MaxShardSize:    100,
	}, shard.WithTransport(shard.NewLoopback(nil, nil)))
	require.NoError(t, err)

	s, err := New(Config{Dimensions: 2, Metric: distance.MetricCosine}, shards, optFns...)
	require.NoError(t, err)

	return s
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &Vector{
		ID:       "v1",
		Values:   []float32{0.25, -0.75},
		Metadata: metadata.Metadata{"category": "test", "rank": "3"},
	}
	require.NoError(t, s.Insert(ctx, in))

	out, err := s.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, in.Values, out.Values)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.False(t, out.CreatedAt.IsZero())
	assert.Equal(t, out.CreatedAt, out.UpdatedAt)
}

func TestInsertMemoryLimit(t *testing.T) {
	// Two dimensions cost 8 bytes per vector, so the budget fits exactly one.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	s := newTestStore(t, WithResources(rc))
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &Vector{ID: "v1", Values: []float32{1, 0}}))
	assert.Equal(t, int64(8), rc.MemoryUsage())

	err := s.Insert(ctx, &Vector{ID: "v2", Values: []float32{0, 1}})
	require.ErrorIs(t, err, ErrMemoryLimit)

	// Deleting frees the budget for the next insert.
	require.NoError(t, s.Delete(ctx, "v1"))
	assert.Equal(t, int64(0), rc.MemoryUsage())
	require.NoError(t, s.Insert(ctx, &Vector{ID: "v2", Values: []float32{0, 1}}))
}

func TestInsertErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &Vector{ID: "v1", Values: []float32{1, 0}}))

	t.Run("duplicate id", func(t *testing.T) {
		err := s.Insert(ctx, &Vector{ID: "v1", Values: []float32{0, 1}})

		var aerr *ErrAlreadyExists
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "v1", aerr.ID)
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		err := s.Insert(ctx, &Vector{ID: "v2", Values: []float32{1, 2, 3}})

		var derr *ErrInvalidDimensions
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 2, derr.Expected)
		assert.Equal(t, 3, derr.Actual)
	})
}

func TestInsertSchemaValidation(t *testing.T) {
	shards, err := shard.NewManager(shard.Config{CurveDimensions: 2, CurveOrder: 8, CoordMin: -1, CoordMax: 1})
	require.NoError(t, err)

	s, err := New(Config{
		Dimensions: 2,
		Metric:     distance.MetricCosine,
		Schema:     metadata.Schema{"rank": metadata.FieldTypeInt},
	}, shards)
	require.NoError(t, err)

	ctx := context.Background()

	err = s.Insert(ctx, &Vector{
		ID:       "v1",
		Values:   []float32{1, 0},
		Metadata: metadata.Metadata{"rank": "not-a-number"},
	})

	var verr *ErrValidationFailed
	require.ErrorAs(t, err, &verr)

	// Unrecognized keys pass through unvalidated.
	require.NoError(t, s.Insert(ctx, &Vector{
		ID:       "v2",
		Values:   []float32{1, 0},
		Metadata: metadata.Metadata{"rank": "7", "note": "free-form"},
	}))
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		err := s.Update(ctx, &Vector{ID: "missing", Values: []float32{1, 0}})

		var nerr *ErrNotFound
		require.ErrorAs(t, err, &nerr)
	})

	t.Run("replaces wholesale", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, &Vector{
			ID:       "v1",
			Values:   []float32{1, 0},
			Metadata: metadata.Metadata{"a": "1", "b": "2"},
		}))

		require.NoError(t, s.Update(ctx, &Vector{
			ID:       "v1",
			Values:   []float32{-1, 0},
			Metadata: metadata.Metadata{"c": "3"},
		}))

		out, err := s.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, []float32{-1, 0}, out.Values)
		assert.Equal(t, metadata.Metadata{"c": "3"}, out.Metadata)
		assert.True(t, out.UpdatedAt.After(out.CreatedAt) || out.UpdatedAt.Equal(out.CreatedAt))
	})
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var nerr *ErrNotFound
	require.ErrorAs(t, s.Delete(ctx, "missing"), &nerr)

	require.NoError(t, s.Insert(ctx, &Vector{ID: "v1", Values: []float32{1, 0}}))
	require.NoError(t, s.Delete(ctx, "v1"))

	_, err := s.Get(ctx, "v1")
	require.ErrorAs(t, err, &nerr)

	_, ok := s.shards.Locate("v1")
	assert.False(t, ok)
}

func TestSearchThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &Vector{ID: "close", Values: []float32{0.95, 0.31224990}}))
	require.NoError(t, s.Insert(ctx, &Vector{ID: "far", Values: []float32{0.5, 0.86602540}}))

	results, err := s.Search(ctx, []float32{1, 0}, 10, 0.9, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-3)
}

func TestSearchFilterOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		group := "even"
		if i%2 == 1 {
			group = "odd"
		}

		require.NoError(t, s.Insert(ctx, &Vector{
			ID:       fmt.Sprintf("v%d", i),
			Values:   []float32{1, 0},
			Metadata: metadata.Metadata{"group": group},
		}))
	}

	t.Run("exact filter", func(t *testing.T) {
		results, err := s.Search(ctx, []float32{1, 0}, 10, 0, metadata.Filter{"group": "odd"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "v1", results[0].ID)
		assert.Equal(t, "v3", results[1].ID)
	})

	t.Run("equal scores break ties by insertion order", func(t *testing.T) {
		results, err := s.Search(ctx, []float32{1, 0}, 10, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 4)
		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("v%d", i), r.ID)
		}
	})

	t.Run("limit truncates", func(t *testing.T) {
		results, err := s.Search(ctx, []float32{1, 0}, 2, 0, nil)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("wrong query dimensions", func(t *testing.T) {
		_, err := s.Search(ctx, []float32{1}, 10, 0, nil)

		var derr *ErrInvalidDimensions
		require.ErrorAs(t, err, &derr)
	})
}

func TestLedgerPersistence(t *testing.T) {
	led := ledger.NewMemory("")
	s := newTestStore(t, WithLedger(led))
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &Vector{ID: "v1", Values: []float32{1, 0}}))

	data, err := led.GetEntry(ctx, "vector", "v1")
	require.NoError(t, err)

	var stored Vector
	require.NoError(t, s.codec.Unmarshal(data, &stored))
	assert.Equal(t, []float32{1, 0}, stored.Values)

	require.NoError(t, s.Delete(ctx, "v1"))

	_, err = led.GetEntry(ctx, "vector", "v1")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

// failingLedger rejects writes while fail is set.
type failingLedger struct {
	ledger.Ledger

	mu   sync.Mutex
	fail bool
}

func (f *failingLedger) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *failingLedger) PutEntry(ctx context.Context, kind, id string, data []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return errors.New("ledger unavailable")
	}

	return f.Ledger.PutEntry(ctx, kind, id, data)
}

func TestUpdateRollsBackOnPersistFailure(t *testing.T) {
	fl := &failingLedger{Ledger: ledger.NewMemory("")}
	s := newTestStore(t, WithLedger(fl))
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &Vector{
		ID:       "v1",
		Values:   []float32{0.25, -0.75},
		Metadata: metadata.Metadata{"category": "a"},
	}))

	fl.setFail(true)

	err := s.Update(ctx, &Vector{
		ID:       "v1",
		Values:   []float32{1, 0},
		Metadata: metadata.Metadata{"category": "b"},
	})
	require.Error(t, err)

	// The failed update leaves no trace: values, metadata, and timestamps
	// match the ledger's state.
	got, err := s.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.75}, got.Values)
	assert.Equal(t, metadata.Metadata{"category": "a"}, got.Metadata)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	fl.setFail(false)

	require.NoError(t, s.Update(ctx, &Vector{
		ID:       "v1",
		Values:   []float32{1, 0},
		Metadata: metadata.Metadata{"category": "b"},
	}))

	got, err = s.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Values)
}

func TestCheckRebalancing(t *testing.T) {
	shards, err := shard.NewManager(shard.Config{
		CurveDimensions:    2,
		CurveOrder:         8,
		CoordMin:           -1,
		CoordMax:           1,
		MaxShardSize:       50,
		MigrationBatchSize: 10,
	}, shard.WithTransport(shard.NewLoopback(nil, nil)))
	require.NoError(t, err)

	s, err := New(Config{Dimensions: 2, Metric: distance.MetricCosine}, shards)
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < 80; i++ {
		require.NoError(t, s.Insert(ctx, &Vector{
			ID:     fmt.Sprintf("v%d", i),
			Values: []float32{float32(i%17)/8.5 - 1, float32(i%13)/6.5 - 1},
		}))
	}

	plans, err := s.CheckRebalancing(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.NotEmpty(t, plans[0].Batches)

	require.NoError(t, shards.ExecuteMigration(ctx, plans[0]))

	sizes := shards.ShardSizes()
	require.Len(t, sizes, 2)

	total := 0
	for _, n := range sizes {
		total += n
	}
	assert.Equal(t, 80, total)

	// No shard is overfull after the split completes.
	assert.Empty(t, shards.Overfull())
}
