// Package vectorstore implements vector CRUD and similarity search on top of
// the shard placement layer.
//
// Vector values live in a contiguous columnar buffer for cache locality;
// per-vector metadata and timestamps live in a side table keyed by id.
// Searches take shared access and scan live rows, scoring with a configurable
// distance metric and filtering on exact metadata matches.
package vectorstore
