package curve

import (
	"fmt"
	"slices"
	"sort"
)

const (
	// MaxDimensions is the maximum number of curve dimensions.
	MaxDimensions = 16
	// MaxOrder is the maximum number of bits per dimension.
	MaxOrder = 16
	// MaxTotalBits bounds dimensions*order so the ordinal fits in a uint64.
	MaxTotalBits = 64

	// lutBits is the cutoff for precomputing the full coordinate->ordinal
	// table. 2^16 entries at most.
	lutBits = 16
)

// Hilbert maps points on an n-dimensional lattice of side 2^order to
// ordinals on the Hilbert curve and back.
//
// Both directions are bijections over the lattice; Index and Point are
// exact inverses. Instances are immutable and safe for concurrent use.
type Hilbert struct {
	dimensions int
	order      int

	// lut caches Index results for small lattices, keyed by the packed
	// coordinate bits. nil when the lattice is too large.
	lut []uint64
}

// New creates a Hilbert curve over dimensions coordinates of order bits each.
func New(dimensions, order int) (*Hilbert, error) {
	if dimensions < 1 || dimensions > MaxDimensions {
		return nil, fmt.Errorf("curve: dimensions %d out of range [1,%d]", dimensions, MaxDimensions)
	}
	if order < 1 || order > MaxOrder {
		return nil, fmt.Errorf("curve: order %d out of range [1,%d]", order, MaxOrder)
	}
	if dimensions*order > MaxTotalBits {
		return nil, fmt.Errorf("curve: dimensions*order %d exceeds %d bits", dimensions*order, MaxTotalBits)
	}

	h := &Hilbert{dimensions: dimensions, order: order}

	if dimensions*order <= lutBits {
		h.lut = h.buildLUT()
	}

	return h, nil
}

// Dimensions returns the number of curve dimensions.
func (h *Hilbert) Dimensions() int { return h.dimensions }

// Order returns the number of bits per dimension.
func (h *Hilbert) Order() int { return h.order }

// Side returns the lattice side length 2^order.
func (h *Hilbert) Side() uint32 { return 1 << h.order }

// Index maps a lattice point to its ordinal on the curve.
//
// Coordinates are reduced modulo 2^order; len(point) must equal Dimensions.
func (h *Hilbert) Index(point []uint32) (uint64, error) {
	if len(point) != h.dimensions {
		return 0, fmt.Errorf("curve: point has %d coordinates, want %d", len(point), h.dimensions)
	}

	if h.lut != nil {
		return h.lut[h.pack(point)], nil
	}

	return h.index(point), nil
}

// Point maps an ordinal back to its lattice point. Inverse of Index.
func (h *Hilbert) Point(index uint64) ([]uint32, error) {
	maxIndex := uint64(1) << (h.dimensions * h.order)
	if h.dimensions*h.order < 64 && index >= maxIndex {
		return nil, fmt.Errorf("curve: index %d out of range [0,%d)", index, maxIndex)
	}

	x := h.untranspose(index)
	transposeToAxes(x, h.order)
	return x, nil
}

// SplitPoints returns n-1 ordinal boundaries that split the given population
// into n roughly equal-count buckets. The input is not modified.
//
// A boundary b assigns ordinals < b to the lower bucket. With fewer distinct
// ordinals than buckets, duplicate boundaries may be returned.
func SplitPoints(indexes []uint64, n int) []uint64 {
	if n < 2 || len(indexes) == 0 {
		return nil
	}

	sorted := slices.Clone(indexes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	bounds := make([]uint64, 0, n-1)
	for k := 1; k < n; k++ {
		pos := len(sorted) * k / n
		if pos >= len(sorted) {
			pos = len(sorted) - 1
		}
		bounds = append(bounds, sorted[pos])
	}

	return bounds
}

// index computes the ordinal without the lookup table.
func (h *Hilbert) index(point []uint32) uint64 {
	x := make([]uint32, h.dimensions)
	mask := h.Side() - 1
	for i, p := range point {
		x[i] = p & mask
	}

	axesToTranspose(x, h.order)
	return h.transpose(x)
}

// axesToTranspose converts coordinates into the transposed Hilbert form
// in place (Skilling's Gray-code transform).
func axesToTranspose(x []uint32, order int) {
	n := len(x)
	m := uint32(1) << (order - 1)

	// Inverse undo of excess work.
	for q := m; q > 1; q >>= 1 {
		p := q - 1
		for i := 0; i < n; i++ {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}

	// Gray encode.
	for i := 1; i < n; i++ {
		x[i] ^= x[i-1]
	}

	var t uint32
	for q := m; q > 1; q >>= 1 {
		if x[n-1]&q != 0 {
			t ^= q - 1
		}
	}
	for i := 0; i < n; i++ {
		x[i] ^= t
	}
}

// transposeToAxes is the inverse of axesToTranspose.
func transposeToAxes(x []uint32, order int) {
	n := len(x)
	top := uint32(2) << (order - 1)

	// Gray decode.
	t := x[n-1] >> 1
	for i := n - 1; i > 0; i-- {
		x[i] ^= x[i-1]
	}
	x[0] ^= t

	// Undo excess work.
	for q := uint32(2); q != top; q <<= 1 {
		p := q - 1
		for i := n - 1; i >= 0; i-- {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				tt := (x[0] ^ x[i]) & p
				x[0] ^= tt
				x[i] ^= tt
			}
		}
	}
}

// transpose interleaves the per-dimension bit planes into one ordinal,
// most significant bit plane first.
func (h *Hilbert) transpose(x []uint32) uint64 {
	var index uint64
	for bit := h.order - 1; bit >= 0; bit-- {
		for i := 0; i < h.dimensions; i++ {
			index = (index << 1) | uint64((x[i]>>bit)&1)
		}
	}
	return index
}

// untranspose splits an ordinal back into per-dimension bit planes.
func (h *Hilbert) untranspose(index uint64) []uint32 {
	x := make([]uint32, h.dimensions)
	pos := 0
	for bit := h.order - 1; bit >= 0; bit-- {
		for i := 0; i < h.dimensions; i++ {
			shift := h.dimensions*h.order - 1 - pos
			x[i] |= uint32((index>>shift)&1) << bit
			pos++
		}
	}
	return x
}

// pack flattens coordinates into a LUT slot.
func (h *Hilbert) pack(point []uint32) uint64 {
	mask := h.Side() - 1
	var key uint64
	for i, p := range point {
		key |= uint64(p&mask) << (i * h.order)
	}
	return key
}

func (h *Hilbert) buildLUT() []uint64 {
	size := 1 << (h.dimensions * h.order)
	lut := make([]uint64, size)

	point := make([]uint32, h.dimensions)
	mask := h.Side() - 1
	for key := 0; key < size; key++ {
		for i := range point {
			point[i] = uint32(key>>(i*h.order)) & mask
		}
		lut[key] = h.index(point)
	}

	return lut
}
