package shard

// Quantizer maps float vector components onto the curve lattice.
//
// Only the first Dimensions components participate; values are clamped to
// [Min, Max] and scaled to [0, 2^Order). The mapping is deterministic, so
// the same vector always lands on the same ordinal.
type Quantizer struct {
	dimensions int
	order      int
	min, max   float32
}

// NewQuantizer creates a quantizer for the given curve geometry.
// min/max declare the expected component range; min < max is required by
// the caller (Config validation).
func NewQuantizer(dimensions, order int, min, max float32) *Quantizer {
	return &Quantizer{
		dimensions: dimensions,
		order:      order,
		min:        min,
		max:        max,
	}
}

// Point quantizes vec onto the lattice. Vectors shorter than the curve
// dimensionality are zero-padded.
func (q *Quantizer) Point(vec []float32) []uint32 {
	side := uint32(1) << q.order
	scale := float32(side-1) / (q.max - q.min)

	point := make([]uint32, q.dimensions)
	for i := 0; i < q.dimensions && i < len(vec); i++ {
		v := vec[i]
		if v < q.min {
			v = q.min
		}
		if v > q.max {
			v = q.max
		}
		point[i] = uint32((v - q.min) * scale)
	}
	return point
}
