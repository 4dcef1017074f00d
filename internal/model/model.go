package model

import (
	"context"
	"log/slog"
	"time"

	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/guard"
	"github.com/ssured/drawbot/internal/value"
)

// DefaultKeepAlive is how long Create keeps a fresh node observed.
const DefaultKeepAlive = time.Second

// Model binds a subject of a graph, optionally through a tracking view.
// The zero Model is unbound.
type Model struct {
	g       *graph.Graph
	subject value.Subject
	view    *graph.View
}

// Modeler is implemented by Model and every type embedding it.
type Modeler interface {
	Base() Model
}

// Base returns m itself, so embedding types satisfy Modeler.
func (m Model) Base() Model {
	return m
}

// Graph returns the bound graph.
func (m Model) Graph() *graph.Graph {
	return m.g
}

// Subject returns the bound subject.
func (m Model) Subject() value.Subject {
	return m.subject
}

// View returns the tracking view, or nil for untracked models.
func (m Model) View() *graph.View {
	return m.view
}

// IsImmutable reports whether the model is bound to a snapshot.
func (m Model) IsImmutable() bool {
	return m.subject.IsImmutable()
}

// Resolve opens a referenced subject in the same graph and view.
func (m Model) Resolve(ref value.Ref) (any, bool) {
	if m.g == nil {
		return nil, false
	}
	return Model{g: m.g, subject: ref.Subject.Clone(), view: m.view}, true
}

func (m Model) get(prop string) (value.Value, bool) {
	if m.view != nil {
		return m.view.Get(m.subject, prop)
	}
	return m.g.Get(m.subject, prop)
}

// Same reports whether a and b address the same node of the same graph.
func Same(a, b Modeler) bool {
	x, y := a.Base(), b.Base()
	return x.g == y.g && x.subject.Equal(y.subject)
}

// Read decodes prop through g. A missing property is decoded from a nil
// entry, which lets guards such as guard.WithDefault supply a value.
func Read[T any](m Modeler, g guard.Guard[T], prop string) (T, bool) {
	b := m.Base()
	v, _ := b.get(prop)
	return g.FromValue(v.Entry, b)
}

// Write encodes v through g and stores it. Values that do not validate are
// dropped without error; writes to an immutable model fail.
func Write[T any](m Modeler, g guard.Guard[T], v T, prop string) error {
	b := m.Base()
	if b.IsImmutable() {
		return graph.NewImmutableError(b.subject, prop)
	}
	e, ok := g.ToValue(v)
	if !ok {
		slog.Debug("dropping invalid write", "subject", b.subject, "prop", prop)
		return nil
	}
	return b.g.Set(b.subject, prop, e)
}

// Keys lists the model's properties in sorted order.
func Keys(m Modeler) []string {
	b := m.Base()
	if b.view != nil {
		return b.view.Keys(b.subject)
	}
	return b.g.Keys(b.subject)
}

// State returns the state prop was last written with, or "" when unset.
func State(m Modeler, prop string) string {
	v, _ := m.Base().get(prop)
	return v.State
}

// Tuples returns the model's properties as change tuples.
func Tuples(m Modeler) []value.ChangeTuple {
	b := m.Base()
	if b.view != nil {
		return b.view.Tuples(b.subject)
	}
	return b.g.Tuples(b.subject)
}

// Get binds subject without tracking.
func Get[M any](g *graph.Graph, ctor func(Model) M, subject value.Subject) M {
	return ctor(Model{g: g, subject: subject.Clone()})
}

// In binds subject through v; every read is tracked by v.
func In[M any](v *graph.View, ctor func(Model) M, subject value.Subject) M {
	return ctor(Model{g: v.Graph(), subject: subject.Clone(), view: v})
}

// Sub binds the child of m at path. With an empty path the node of m is
// rebound as another model type.
func Sub[M any](m Modeler, ctor func(Model) M, path ...string) M {
	b := m.Base()
	return ctor(Model{g: b.g, subject: b.subject.Child(path...), view: b.view})
}

// Open binds subject in the graph and view of m. A nil subject opens a new
// root node named by the graph's id generator.
func Open[M any](m Modeler, ctor func(Model) M, subject value.Subject) M {
	b := m.Base()
	if subject == nil {
		subject = value.S(b.g.NewID())
	}
	return ctor(Model{g: b.g, subject: subject.Clone(), view: b.view})
}

// Ref is a guard storing a model as a reference to its subject.
func Ref[M Modeler](ctor func(Model) M) guard.Guard[M] {
	return guard.Func(
		func(m M) (value.Entry, bool) {
			b := m.Base()
			if b.g == nil {
				return nil, false
			}
			return value.Ref{Subject: b.subject.Clone()}, true
		},
		func(e value.Entry, scope guard.Scope) (M, bool) {
			var zero M
			ref, ok := value.AsRef(e)
			if !ok || scope == nil {
				return zero, false
			}
			resolved, ok := scope.Resolve(ref)
			if !ok {
				return zero, false
			}
			base, ok := resolved.(Model)
			if !ok {
				return zero, false
			}
			return ctor(base), true
		},
	)
}

// Immutable freezes m into a content-addressed snapshot and binds it as M.
// An already immutable model is rebound as is.
func Immutable[M any](m Modeler, ctor func(Model) M) (M, error) {
	b := m.Base()
	if b.IsImmutable() {
		return ctor(b), nil
	}
	if b.view != nil {
		b.view.Tuples(b.subject)
	}
	frozen, err := b.g.Snapshot(b.subject)
	if err != nil {
		var zero M
		return zero, err
	}
	return ctor(Model{g: b.g, subject: frozen, view: b.view}), nil
}

// Create binds a new child of parent named by the graph's id generator, runs
// init on it and keeps the node observed for keepAlive (DefaultKeepAlive when
// zero) or until ctx is done, so writes made by init reach the change log.
func Create[M any](ctx context.Context, g *graph.Graph, ctor func(Model) M, parent value.Subject, init func(M) error, keepAlive time.Duration) (M, error) {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	subject := parent.Child(g.NewID())
	h := g.Observe(subject)
	m := Get(g, ctor, subject)

	if init != nil {
		if err := init(m); err != nil {
			h.Release()
			var zero M
			return zero, err
		}
	}

	go func() {
		timer := time.NewTimer(keepAlive)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		h.Release()
	}()
	return m, nil
}
