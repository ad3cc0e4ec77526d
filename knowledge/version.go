package knowledge

import "maps"

// VersionVector tracks one monotonic counter per agent. Counters never
// decrease; a missing agent counts as zero.
type VersionVector map[string]uint64

// NewVersionVector returns an empty version vector.
func NewVersionVector() VersionVector {
	return make(VersionVector)
}

// Increment bumps the counter for agent.
func (v VersionVector) Increment(agent string) {
	v[agent]++
}

// Merge raises every counter to the component-wise maximum of v and other.
func (v VersionVector) Merge(other VersionVector) {
	for agent, n := range other {
		if n > v[agent] {
			v[agent] = n
		}
	}
}

// Dominates reports whether v is component-wise >= other and not equal.
func (v VersionVector) Dominates(other VersionVector) bool {
	for agent, n := range other {
		if v[agent] < n {
			return false
		}
	}

	return !v.Equal(other)
}

// Concurrent reports whether neither vector dominates the other and they
// are not equal.
func (v VersionVector) Concurrent(other VersionVector) bool {
	return !v.Equal(other) && !v.Dominates(other) && !other.Dominates(v)
}

// Equal reports whether both vectors carry the same counters, treating
// missing agents as zero.
func (v VersionVector) Equal(other VersionVector) bool {
	for agent, n := range v {
		if other[agent] != n {
			return false
		}
	}

	for agent, n := range other {
		if v[agent] != n {
			return false
		}
	}

	return true
}

// Clone returns an independent copy.
func (v VersionVector) Clone() VersionVector {
	if v == nil {
		return NewVersionVector()
	}

	return maps.Clone(v)
}
