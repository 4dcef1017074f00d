package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssured/drawbot/internal/value"
)

// DefaultEpsilon is the distance under which two numbers written with the
// same state count as equal.
const DefaultEpsilon = 0.0001

// Sink receives what a graph logs. Calls arrive outside the graph lock, in
// log order, and never concurrently for one graph.
type Sink interface {
	// OnChange is called for every accepted write on an observed node.
	OnChange(tuple value.ChangeTuple)

	// OnObserved is called when a subject enters (true) or leaves (false)
	// the observed-set.
	OnObserved(subject value.Subject, observed bool)
}

// Filter selects the subjects a connection hears about.
type Filter func(subject value.Subject) bool

// All accepts every subject.
func All(value.Subject) bool { return true }

// ExcludeRoots rejects subjects whose first segment is one of roots.
func ExcludeRoots(roots ...string) Filter {
	return func(subject value.Subject) bool {
		return len(subject) == 0 || !slices.Contains(roots, subject[0])
	}
}

// event is one entry of the outgoing log: a change tuple or an
// observed-set edge.
type event struct {
	tuple    *value.ChangeTuple
	subject  value.Subject
	observed bool
}

type connection struct {
	filter Filter
	sink   Sink
	closed atomic.Bool
}

func (c *connection) deliver(log *slog.Logger, ev event) {
	if c.closed.Load() {
		return
	}
	subject := ev.subject
	if ev.tuple != nil {
		subject = ev.tuple.Subject
	}
	if c.filter != nil && !c.filter(subject) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("sink panicked", "subject", subject, "panic", r)
		}
	}()
	if ev.tuple != nil {
		c.sink.OnChange(*ev.tuple)
	} else {
		c.sink.OnObserved(subject, ev.observed)
	}
}

// Graph is the replicated property graph.
//
// Thread-safety: all methods are safe for concurrent use. Sinks and views
// run without the graph lock held and may call back into the graph.
type Graph struct {
	mu       sync.Mutex
	clock    Clock
	epsilon  float64
	schedule Scheduler
	ids      IDGenerator
	log      *slog.Logger

	nodes    map[string]*Node
	observed map[string]*Node
	views    map[*View]struct{}
	conns    []*connection
	timers   map[*time.Timer]struct{}

	outbox      []event
	stale       []*View
	feed        []value.ChangeTuple
	dispatching bool
	closed      bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock sets the state clock. Default: a WallClock with an empty id.
func WithClock(c Clock) Option {
	return func(g *Graph) {
		g.clock = c
	}
}

// WithEpsilon sets the numeric tie-break distance. Default: DefaultEpsilon.
func WithEpsilon(eps float64) Option {
	return func(g *Graph) {
		g.epsilon = eps
	}
}

// WithScheduler sets where housekeeping runs. Default: Immediate.
func WithScheduler(s Scheduler) Option {
	return func(g *Graph) {
		g.schedule = s
	}
}

// WithIDGenerator sets the generator behind NewID. Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(g *Graph) {
		g.ids = ids
	}
}

// WithLogger scopes graph logging. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		g.log = l
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		clock:    NewWallClock(""),
		epsilon:  DefaultEpsilon,
		schedule: Immediate,
		ids:      UUIDv7Generator{},
		log:      slog.Default(),
		nodes:    make(map[string]*Node),
		observed: make(map[string]*Node),
		views:    make(map[*View]struct{}),
		timers:   make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Clock returns the graph's state clock.
func (g *Graph) Clock() Clock {
	return g.clock
}

// NewID returns a fresh id for a child node.
func (g *Graph) NewID() string {
	return g.ids.Generate()
}

// Node returns the node bound to subject, creating it on first use. The same
// subject always yields the same *Node.
func (g *Graph) Node(subject value.Subject) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodeLocked(subject)
}

func (g *Graph) nodeLocked(subject value.Subject) *Node {
	key := value.Key(subject)
	if n, ok := g.nodes[key]; ok {
		return n
	}
	n := &Node{
		g:       g,
		subject: subject.Clone(),
		key:     key,
		data:    make(map[string]value.Value),
		views:   make(map[*View]map[string]struct{}),
	}
	g.nodes[key] = n
	return n
}

// Set writes entry to subject.prop stamped with the current clock.
// Subjects under the immutable marker reject writes with an ImmutableError.
func (g *Graph) Set(subject value.Subject, prop string, entry any) error {
	return g.Assign(subject, map[string]any{prop: entry})
}

// SetRef writes a reference to target.
func (g *Graph) SetRef(subject value.Subject, prop string, target value.Subject) error {
	return g.Set(subject, prop, value.Ref{Subject: target.Clone()})
}

// Assign writes several properties under a single state.
func (g *Graph) Assign(subject value.Subject, props map[string]any) error {
	if subject.IsImmutable() {
		for prop := range props {
			return NewImmutableError(subject.Clone(), prop)
		}
		return NewImmutableError(subject.Clone(), "")
	}

	entries := make(map[string]value.Entry, len(props))
	for prop, raw := range props {
		e, err := value.Normalize(raw)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", subject, prop, err)
		}
		entries[prop] = e
	}

	keys := make([]string, 0, len(entries))
	for prop := range entries {
		keys = append(keys, prop)
	}
	sort.Strings(keys)

	g.mu.Lock()
	state := g.clock.Now()
	var errs []error
	for _, prop := range keys {
		errs = append(errs, g.mergeLocked(subject, prop, value.Value{State: state, Entry: entries[prop]}))
	}
	g.mu.Unlock()

	g.schedule(g.dispatch)
	return errors.Join(errs...)
}

// mergeLocked merges one value into subject.prop and bubbles a reference to
// subject into its parent.
func (g *Graph) mergeLocked(subject value.Subject, prop string, in value.Value) error {
	n := g.nodeLocked(subject)
	if err := g.hamLocked(n, prop, in); err != nil {
		return err
	}
	if len(subject) > 1 && subject[0] != value.ImmutableMarker {
		ref := value.Value{State: in.State, Entry: value.Ref{Subject: n.subject}}
		return g.mergeLocked(subject.Parent(), subject.Last(), ref)
	}
	return nil
}

// hamLocked applies the last-writer-wins rule to one property.
func (g *Graph) hamLocked(n *Node, prop string, in value.Value) error {
	if now := g.clock.Now(); in.State > now {
		return NewFutureDataError(n.subject, prop, in.State, now)
	}

	cur, exists := n.data[prop]
	if exists && n.IsImmutable() {
		// Frozen properties are only ever filled, never replaced.
		if !value.EqualEntries(in.Entry, cur.Entry) {
			return NewImmutableError(n.subject, prop)
		}
		return nil
	}
	if exists {
		if in.State < cur.State {
			return nil
		}
		if in.State == cur.State && value.Compare(in.Entry, cur.Entry, g.epsilon) <= 0 {
			return nil
		}
	}

	n.data[prop] = in
	if n.active() {
		tuple := value.ChangeTuple{Subject: n.subject, Prop: prop, Value: in}
		if exists {
			prev := cur
			tuple.Prev = &prev
		}
		g.outbox = append(g.outbox, event{tuple: &tuple})
	}
	g.invalidateLocked(n, prop)
	return nil
}

// Feed queues tuples received from a replica. Tuples for subjects outside the
// observed-set are dropped when the queue drains. Ignored after Close.
func (g *Graph) Feed(tuples ...value.ChangeTuple) {
	if len(tuples) == 0 {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.feed = append(g.feed, tuples...)
	g.mu.Unlock()

	g.schedule(g.drain)
}

func (g *Graph) drain() {
	g.mu.Lock()
	g.drainLocked()
	g.mu.Unlock()
	g.dispatch()
}

func (g *Graph) drainLocked() {
	for len(g.feed) > 0 {
		batch := g.feed
		g.feed = nil
		for _, t := range batch {
			n, ok := g.observed[value.Key(t.Subject)]
			if !ok {
				g.log.Debug("dropping tuple for unobserved subject", "subject", t.Subject, "prop", t.Prop)
				continue
			}
			err := g.mergeLocked(n.subject, t.Prop, t.Value)
			var ge *Error
			switch {
			case err == nil:
			case errors.As(err, &ge) && ge.Code == ErrCodeFutureData:
				g.deferLocked(t, ge)
			default:
				g.log.Warn("merge failed", "subject", t.Subject, "prop", t.Prop, "error", err)
			}
		}
	}
}

// deferLocked feeds t again once the clock has caught up with its state.
func (g *Graph) deferLocked(t value.ChangeTuple, fe *Error) {
	if g.closed {
		g.log.Debug("dropping future tuple on closed graph", "subject", t.Subject, "prop", t.Prop)
		return
	}
	diff := g.clock.Millis(fe.State) - g.clock.Millis(fe.Now)
	if diff < 0 {
		diff = -diff
	}
	delay := time.Duration(diff+1) * time.Millisecond
	g.log.Debug("deferring future tuple", "subject", t.Subject, "prop", t.Prop, "state", fe.State, "delay", delay)

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		g.mu.Lock()
		delete(g.timers, timer)
		g.mu.Unlock()
		g.Feed(t)
	})
	g.timers[timer] = struct{}{}
}

// Connect registers sink for every logged change and observed-set edge on
// subjects accepted by filter (nil accepts all). The returned function
// disconnects; no calls arrive after it returns.
func (g *Graph) Connect(filter Filter, sink Sink) (disconnect func()) {
	c := &connection{filter: filter, sink: sink}
	g.mu.Lock()
	g.conns = append(g.conns, c)
	g.mu.Unlock()

	return func() {
		c.closed.Store(true)
		g.mu.Lock()
		defer g.mu.Unlock()
		g.conns = slices.DeleteFunc(g.conns, func(other *connection) bool { return other == c })
	}
}

// dispatch hands the outgoing log to the connections and re-runs stale
// views until both are empty. Reentrant and concurrent calls return at once;
// the running dispatcher picks up their work.
func (g *Graph) dispatch() {
	g.mu.Lock()
	if g.dispatching {
		g.mu.Unlock()
		return
	}
	g.dispatching = true

	for len(g.outbox) > 0 || len(g.stale) > 0 {
		events := g.outbox
		g.outbox = nil
		views := g.stale
		g.stale = nil
		conns := slices.Clone(g.conns)
		g.mu.Unlock()

		for _, ev := range events {
			for _, c := range conns {
				c.deliver(g.log, ev)
			}
		}
		for _, v := range views {
			v.run()
		}

		g.mu.Lock()
	}

	g.dispatching = false
	g.mu.Unlock()
}

// Get reads subject.prop without tracking.
func (g *Graph) Get(subject value.Subject, prop string) (value.Value, bool) {
	return g.Node(subject).Get(prop)
}

// Keys lists the properties of subject in sorted order.
func (g *Graph) Keys(subject value.Subject) []string {
	return g.Node(subject).Keys()
}

// Tuples returns the current properties of subject as change tuples in key
// order.
func (g *Graph) Tuples(subject value.Subject) []value.ChangeTuple {
	return g.Node(subject).Tuples()
}

// Observe marks subject as observed until the handle is released.
func (g *Graph) Observe(subject value.Subject) *Handle {
	return g.Node(subject).Observe()
}

// Observed returns the observed-set in subject order.
func (g *Graph) Observed() []value.Subject {
	g.mu.Lock()
	out := make([]value.Subject, 0, len(g.observed))
	for _, n := range g.observed {
		out = append(out, n.subject)
	}
	g.mu.Unlock()

	slices.SortFunc(out, value.Subject.Compare)
	return out
}

// IsObserved reports whether subject is in the observed-set.
func (g *Graph) IsObserved(subject value.Subject) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.observed[value.Key(subject)]
	return ok
}

// Snapshot freezes the current contents of subject into an immutable node
// and returns its subject. Snapshotting an immutable subject returns it
// unchanged.
func (g *Graph) Snapshot(subject value.Subject) (value.Subject, error) {
	return g.Node(subject).Snapshot()
}

func (g *Graph) acquireLocked(n *Node) {
	n.observers++
	if n.observers == 1 {
		g.observed[n.key] = n
		g.outbox = append(g.outbox, event{subject: n.subject, observed: true})
	}
}

func (g *Graph) releaseLocked(n *Node) {
	if n.observers == 0 {
		return
	}
	n.observers--
	if n.observers == 0 {
		delete(g.observed, n.key)
		g.outbox = append(g.outbox, event{subject: n.subject, observed: false})
	}
}

func (g *Graph) invalidateLocked(n *Node, prop string) {
	for v, props := range n.views {
		_, hit := props[prop]
		if !hit {
			_, hit = props[wholeNode]
		}
		if hit {
			g.markStaleLocked(v)
		}
	}
}

func (g *Graph) markStaleLocked(v *View) {
	if v.stale || v.stopped {
		return
	}
	v.stale = true
	if !v.running {
		g.stale = append(g.stale, v)
	}
}

// Close stops every view, drains the feed and disconnects all sinks after a
// final dispatch. Feed calls after Close are ignored.
func (g *Graph) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	for t := range g.timers {
		t.Stop()
	}
	clear(g.timers)
	g.drainLocked()
	views := make([]*View, 0, len(g.views))
	for v := range g.views {
		views = append(views, v)
	}
	g.mu.Unlock()

	for _, v := range views {
		v.Stop()
	}
	g.dispatch()

	g.mu.Lock()
	for _, c := range g.conns {
		c.closed.Store(true)
	}
	g.conns = nil
	g.mu.Unlock()

	g.log.Debug("graph closed")
	return nil
}
