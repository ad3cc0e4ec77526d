// Package distance provides similarity metrics for vector comparison.
//
// All metrics produce a similarity score where higher means more similar,
// so results from different metrics can flow through the same ranking and
// threshold logic.
package distance
