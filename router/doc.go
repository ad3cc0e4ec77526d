// Package router fans similarity queries out to healthy nodes and merges
// the answers.
//
// Candidate nodes are ranked by a weighted health score built from their
// latest resource report; unhealthy nodes are skipped until a fresher
// report clears them. Identical in-flight queries collapse into a single
// fill, and answers are cached with a TTL keyed by a hash of the query.
package router
