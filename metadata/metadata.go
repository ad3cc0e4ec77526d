package metadata

import "maps"

// Metadata is the string→string mapping attached to a record.
type Metadata map[string]string

// Clone returns a deep copy. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Equal reports whether two metadata maps hold the same entries.
func (m Metadata) Equal(other Metadata) bool {
	return maps.Equal(m, other)
}

// Filter is a set of exact-match conditions over metadata.
// An empty filter matches everything.
type Filter map[string]string

// Matches reports whether every filter condition is satisfied by m.
func (f Filter) Matches(m Metadata) bool {
	for k, want := range f {
		if got, ok := m[k]; !ok || got != want {
			return false
		}
	}
	return true
}
