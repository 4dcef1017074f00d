package graph

import (
	"sort"

	"github.com/ssured/drawbot/internal/value"
)

// Node is the graph's binding for one subject. Nodes are memoized: a graph
// returns the same *Node for a subject for its whole lifetime.
type Node struct {
	g       *Graph
	subject value.Subject
	key     string

	// Guarded by g.mu.
	data      map[string]value.Value
	observers int
	views     map[*View]map[string]struct{}
}

// Subject returns the node's address. Callers must not modify it.
func (n *Node) Subject() value.Subject {
	return n.subject
}

// Graph returns the graph the node belongs to.
func (n *Node) Graph() *Graph {
	return n.g
}

// IsImmutable reports whether the node is a content-addressed snapshot.
func (n *Node) IsImmutable() bool {
	return n.subject.IsImmutable()
}

// Active reports whether the node is observed and logging changes.
func (n *Node) Active() bool {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	return n.active()
}

func (n *Node) active() bool {
	return n.observers > 0
}

// Get returns the current value of prop.
func (n *Node) Get(prop string) (value.Value, bool) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	v, ok := n.data[prop]
	return v, ok
}

// Keys lists the node's properties in sorted order.
func (n *Node) Keys() []string {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	return n.keysLocked()
}

func (n *Node) keysLocked() []string {
	keys := make([]string, 0, len(n.data))
	for k := range n.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tuples returns every property as a change tuple, in key order.
func (n *Node) Tuples() []value.ChangeTuple {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	return n.tuplesLocked()
}

func (n *Node) tuplesLocked() []value.ChangeTuple {
	keys := n.keysLocked()
	out := make([]value.ChangeTuple, 0, len(keys))
	for _, k := range keys {
		out = append(out, value.ChangeTuple{Subject: n.subject, Prop: k, Value: n.data[k]})
	}
	return out
}

// Set writes entry to prop stamped with the current clock.
func (n *Node) Set(prop string, entry any) error {
	return n.g.Set(n.subject, prop, entry)
}

// Observe marks the node as observed until the handle is released.
func (n *Node) Observe() *Handle {
	n.g.mu.Lock()
	n.g.acquireLocked(n)
	n.g.mu.Unlock()

	n.g.schedule(n.g.dispatch)
	return &Handle{n: n}
}

// Snapshot hashes the node's properties, copies them once into the node
// ["$", hash] and returns that subject. The copy runs with the snapshot
// observed, so every copied property reaches the change log.
func (n *Node) Snapshot() (value.Subject, error) {
	if n.IsImmutable() {
		return n.subject.Clone(), nil
	}
	g := n.g

	g.mu.Lock()
	props := make(map[string]value.Value, len(n.data))
	for k, v := range n.data {
		props[k] = v
	}
	hash, err := value.Hash(props)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	frozen := g.nodeLocked(value.S(value.ImmutableMarker, hash))
	g.acquireLocked(frozen)
	for _, k := range n.keysLocked() {
		if err = g.mergeLocked(frozen.subject, k, props[k]); err != nil {
			break
		}
	}
	g.releaseLocked(frozen)
	g.mu.Unlock()

	g.schedule(g.dispatch)
	if err != nil {
		return nil, err
	}
	return frozen.subject.Clone(), nil
}

// Handle keeps a node observed. Release is idempotent.
type Handle struct {
	n        *Node
	released bool
}

// Node returns the observed node.
func (h *Handle) Node() *Node {
	return h.n
}

// Release drops the observation. The node leaves the observed-set when its
// last handle or view lets go.
func (h *Handle) Release() {
	g := h.n.g
	g.mu.Lock()
	if h.released {
		g.mu.Unlock()
		return
	}
	h.released = true
	g.releaseLocked(h.n)
	g.mu.Unlock()

	g.schedule(g.dispatch)
}
