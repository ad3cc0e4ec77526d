// Package knowledge implements a conflict-free replicated knowledge store.
//
// Concurrent updates from independent agents converge without coordination:
// every entry carries a version vector, deletions become tombstones instead
// of removals, and Merge applies a pairwise rule that is commutative,
// associative, and idempotent. Tag and source lookups run over roaring
// bitmap posting lists keyed by interned row ids.
package knowledge
