// Package transport replicates a graph over a message connection.
//
// Two messages travel on the wire, one JSON object each:
//
//	{"tuple": [subject, prop, [state, entry]]}
//	{"subject": subject, "observed": bool}
//
// A client peer announces its observed-set and forwards its local changes.
// A server peer answers every observed announcement by streaming the
// subject's tuples, and keeps streaming while the subject changes, until the
// matching unobserve arrives. Both sides feed received tuples into their
// graph and remember the last few of them, so a tuple is never sent back to
// the peer it came from.
package transport
