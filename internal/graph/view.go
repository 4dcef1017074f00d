package graph

import (
	"github.com/ssured/drawbot/internal/value"
)

// wholeNode is the dependency recorded by reads that cover every property.
const wholeNode = "*"

// View is a derived computation over the graph. It re-runs whenever a
// (node, prop) pair it read during its last run changes, and keeps every
// node it read observed until it stops reading it or is stopped.
type View struct {
	g  *Graph
	fn func(*View)

	// Guarded by g.mu.
	held    map[*Node]struct{}
	prev    map[*Node]struct{}
	running bool
	stale   bool
	stopped bool
}

// Autorun runs fn once on the calling goroutine and again, through the
// graph scheduler, each time something it read changes.
func (g *Graph) Autorun(fn func(v *View)) *View {
	v := &View{
		g:    g,
		fn:   fn,
		held: make(map[*Node]struct{}),
	}
	g.mu.Lock()
	g.views[v] = struct{}{}
	g.mu.Unlock()

	v.run()
	return v
}

// Graph returns the graph the view reads from.
func (v *View) Graph() *Graph {
	return v.g
}

// Get reads subject.prop and records the dependency.
func (v *View) Get(subject value.Subject, prop string) (value.Value, bool) {
	g := v.g
	g.mu.Lock()
	n := g.nodeLocked(subject)
	v.trackLocked(n, prop)
	val, ok := n.data[prop]
	g.mu.Unlock()

	g.schedule(g.dispatch)
	return val, ok
}

// Keys lists the properties of subject and depends on all of them.
func (v *View) Keys(subject value.Subject) []string {
	g := v.g
	g.mu.Lock()
	n := g.nodeLocked(subject)
	v.trackLocked(n, wholeNode)
	keys := n.keysLocked()
	g.mu.Unlock()

	g.schedule(g.dispatch)
	return keys
}

// Tuples returns the properties of subject as change tuples and depends on
// all of them.
func (v *View) Tuples(subject value.Subject) []value.ChangeTuple {
	g := v.g
	g.mu.Lock()
	n := g.nodeLocked(subject)
	v.trackLocked(n, wholeNode)
	tuples := n.tuplesLocked()
	g.mu.Unlock()

	g.schedule(g.dispatch)
	return tuples
}

func (v *View) trackLocked(n *Node, prop string) {
	if v.stopped {
		return
	}
	if _, ok := v.held[n]; !ok {
		v.held[n] = struct{}{}
		if _, had := v.prev[n]; had {
			delete(v.prev, n)
		} else {
			v.g.acquireLocked(n)
		}
	}
	props := n.views[v]
	if props == nil {
		props = make(map[string]struct{})
		n.views[v] = props
	}
	props[prop] = struct{}{}
}

// run executes fn with fresh dependencies, then releases the nodes the
// previous run read and this one did not. It repeats while the view was
// invalidated during its own run.
func (v *View) run() {
	g := v.g
	for {
		g.mu.Lock()
		if v.stopped {
			g.mu.Unlock()
			return
		}
		if v.running {
			v.stale = true
			g.mu.Unlock()
			return
		}
		v.running = true
		v.stale = false
		for n := range v.held {
			delete(n.views, v)
		}
		v.prev = v.held
		v.held = make(map[*Node]struct{})
		g.mu.Unlock()

		v.call()

		g.mu.Lock()
		v.running = false
		for n := range v.prev {
			g.releaseLocked(n)
		}
		v.prev = nil
		again := v.stale && !v.stopped
		g.mu.Unlock()

		g.schedule(g.dispatch)
		if !again {
			return
		}
	}
}

func (v *View) call() {
	defer func() {
		if r := recover(); r != nil {
			v.g.log.Error("view panicked", "panic", r)
		}
	}()
	v.fn(v)
}

// Stop releases every node the view holds. The view never runs again.
func (v *View) Stop() {
	g := v.g
	g.mu.Lock()
	if v.stopped {
		g.mu.Unlock()
		return
	}
	v.stopped = true
	for n := range v.held {
		delete(n.views, v)
		g.releaseLocked(n)
	}
	v.held = make(map[*Node]struct{})
	delete(g.views, v)
	g.mu.Unlock()

	g.schedule(g.dispatch)
}
