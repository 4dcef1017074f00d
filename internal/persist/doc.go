// Package persist stores graph nodes in a key/value backend.
//
// Every subject is stored under value.Key(subject) as one JSON object
// mapping property names to their [state, entry] values. The Adapter
// subscribes to a graph: changes are buffered per subject and written by one
// background loop per subject, and subjects entering the observed-set are
// read back and fed into the graph.
//
// # Backends
//
//   - Memory: a map, for tests and throwaway hubs
//   - Files: one data.json per subject directory
//   - SQLite: a single key/value table (WAL mode, single writer)
//   - Badger: an embedded LSM store
package persist
