// Package curve implements a Hilbert space-filling curve: a deterministic,
// locality-preserving bijection between n-dimensional lattice coordinates
// and a one-dimensional ordinal.
//
// Shard placement uses the ordinal as a total order over vectors, so that
// spatially close points land in the same or adjacent shards.
package curve
