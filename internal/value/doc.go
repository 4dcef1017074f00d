// Package value provides the addressing and versioned-value primitives of the
// property graph.
//
// This package imports nothing internal. Every other internal package builds
// on it, which keeps the wire representation in one place.
//
// Key design constraints:
//   - A Subject addresses exactly one node; Key(subject) is injective and
//     sorts like the subjects it encodes
//   - State tokens are opaque strings compared lexicographically
//   - Entries on the wire tag references as [0, subject] and arrays as
//     [1, array]; everything else is plain JSON
//   - Content identity uses canonical JSON and SHA-256
package value
