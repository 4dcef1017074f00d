// Package guard implements bidirectional validating converters between typed
// Go values and graph entries.
//
// A Guard never panics and never returns an error: a false result means the
// input does not validate, and callers decide what to do about it (the model
// layer drops invalid writes and defaults invalid reads).
//
// Composite guards own their child guards. Order matters for AnyOf: the first
// guard that validates wins.
package guard
