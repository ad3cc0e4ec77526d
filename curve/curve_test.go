package curve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		dimensions int
		order      int
		wantErr    bool
	}{
		{"Valid2D", 2, 8, false},
		{"Valid3D", 3, 10, false},
		{"MaxBits", 8, 8, false},
		{"ZeroDimensions", 0, 8, true},
		{"TooManyDimensions", 17, 2, true},
		{"ZeroOrder", 2, 0, true},
		{"OrderTooLarge", 2, 17, true},
		{"TooManyTotalBits", 16, 16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.dimensions, tt.order)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dimensions, h.Dimensions())
			assert.Equal(t, tt.order, h.Order())
		})
	}
}

func TestIndexDeterministic(t *testing.T) {
	h, err := New(3, 8)
	require.NoError(t, err)

	p := []uint32{17, 200, 99}
	first, err := h.Index(p)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := h.Index(p)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestIndexDimensionCheck(t *testing.T) {
	h, err := New(2, 8)
	require.NoError(t, err)

	_, err = h.Index([]uint32{1, 2, 3})
	assert.Error(t, err)
}

func TestIndexBijection(t *testing.T) {
	// Exhaustive over a small lattice: every point maps to a unique ordinal
	// and Point inverts Index.
	h, err := New(2, 5)
	require.NoError(t, err)

	side := int(h.Side())
	seen := make(map[uint64]bool, side*side)

	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			p := []uint32{uint32(x), uint32(y)}
			idx, err := h.Index(p)
			require.NoError(t, err)
			require.False(t, seen[idx], "ordinal %d produced twice", idx)
			seen[idx] = true

			back, err := h.Point(idx)
			require.NoError(t, err)
			assert.Equal(t, p, back)
		}
	}

	assert.Len(t, seen, side*side)
}

func TestLookupTableMatchesDirect(t *testing.T) {
	h, err := New(2, 6) // 12 bits: LUT enabled
	require.NoError(t, err)
	require.NotNil(t, h.lut)

	side := int(h.Side())
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			p := []uint32{uint32(x), uint32(y)}
			viaLUT, err := h.Index(p)
			require.NoError(t, err)
			assert.Equal(t, h.index(p), viaLUT, "LUT diverges at (%d,%d)", x, y)
		}
	}
}

func TestLocality(t *testing.T) {
	// Unit-distance neighbors should map to nearby ordinals on average,
	// compared against random point pairs.
	h, err := New(2, 10)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	side := h.Side()

	absDiff := func(a, b uint64) uint64 {
		if a > b {
			return a - b
		}
		return b - a
	}

	const samples = 2000
	var neighborSum, randomSum float64

	for i := 0; i < samples; i++ {
		x := rng.Uint32() % (side - 1)
		y := rng.Uint32() % side

		a, err := h.Index([]uint32{x, y})
		require.NoError(t, err)
		b, err := h.Index([]uint32{x + 1, y})
		require.NoError(t, err)
		neighborSum += float64(absDiff(a, b))

		c, err := h.Index([]uint32{rng.Uint32() % side, rng.Uint32() % side})
		require.NoError(t, err)
		d, err := h.Index([]uint32{rng.Uint32() % side, rng.Uint32() % side})
		require.NoError(t, err)
		randomSum += float64(absDiff(c, d))
	}

	neighborAvg := neighborSum / samples
	randomAvg := randomSum / samples
	assert.Less(t, neighborAvg, randomAvg/10,
		"neighbor avg %f should be far below random avg %f", neighborAvg, randomAvg)
}

func TestPointRangeCheck(t *testing.T) {
	h, err := New(2, 2)
	require.NoError(t, err)

	_, err = h.Point(16) // lattice has 16 cells: valid ordinals are 0..15
	assert.Error(t, err)
}

func TestSplitPoints(t *testing.T) {
	tests := []struct {
		name    string
		indexes []uint64
		n       int
		want    []uint64
	}{
		{"EvenSplit", []uint64{1, 2, 3, 4, 5, 6, 7, 8}, 2, []uint64{5}},
		{"ThreeWay", []uint64{10, 20, 30, 40, 50, 60}, 3, []uint64{30, 50}},
		{"Unsorted", []uint64{8, 1, 5, 3, 7, 2, 6, 4}, 2, []uint64{5}},
		{"TooFewBuckets", []uint64{1, 2, 3}, 1, nil},
		{"Empty", nil, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitPoints(tt.indexes, tt.n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPointsBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	indexes := make([]uint64, 1000)
	for i := range indexes {
		indexes[i] = rng.Uint64()
	}

	bounds := SplitPoints(indexes, 4)
	require.Len(t, bounds, 3)

	counts := make([]int, 4)
	for _, idx := range indexes {
		bucket := 0
		for _, b := range bounds {
			if idx >= b {
				bucket++
			}
		}
		counts[bucket]++
	}

	for _, c := range counts {
		assert.InDelta(t, 250, c, 30)
	}
}
