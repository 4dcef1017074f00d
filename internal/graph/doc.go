// Package graph implements the replicated property graph.
//
// A Graph holds one Node per Subject. Each node maps property names to
// versioned values, and every write goes through a last-writer-wins merge
// keyed on opaque state tokens, so replicas that exchange change tuples in any
// order converge to the same contents.
//
// ARCHITECTURE:
//
// Merge:
// Incoming values are compared with the clock first (future states are
// rejected and redelivered later), then by state, then by a deterministic
// tie-break on the entry itself. Accepted writes on nested subjects bubble a
// reference up into the parent node.
//
// Observation:
// Only observed nodes log changes. Observation is reference counted through
// Handles and Views, and the graph announces every 0→1 and 1→0 edge of the
// observed-set to its connections.
//
// Dispatch:
// Mutations happen under the graph lock. Logged changes, observed-set edges
// and stale views are handed out afterwards, outside the lock, in log order,
// by whatever Scheduler the graph was built with. Only one dispatcher runs at
// a time; nested writes from sinks or views are picked up by the running one.
package graph
