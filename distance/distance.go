package distance

import (
	"fmt"
	"math"
)

// Metric represents the similarity metric used for vector comparison.
type Metric int

const (
	// MetricCosine scores by the cosine of the angle between vectors.
	MetricCosine Metric = iota
	// MetricEuclidean scores by 1/(1+d) where d is the L2 distance,
	// normalizing distance into the (0,1] similarity range.
	MetricEuclidean
	// MetricDot scores by the raw dot product.
	MetricDot
)

// String returns the string representation of the Metric.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricEuclidean:
		return "Euclidean"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Func is a function type for similarity calculation.
// Vectors must be the same length (caller's responsibility).
type Func func(a, b []float32) float32

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricEuclidean:
		return NormalizedEuclidean, nil
	case MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric %v", m)
	}
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine calculates the cosine similarity of two vectors.
// Returns 0 when either vector has zero magnitude.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

// NormalizedEuclidean maps the L2 distance between two vectors into a
// (0,1] similarity: identical vectors score 1, the score decays toward 0
// with distance.
func NormalizedEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1 / (1 + sqrt(sum))
}

func sqrt(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
