package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/value"
)

// pending holds the unwritten changes of one subject.
type pending struct {
	subject value.Subject
	props   Record
}

// Adapter keeps a Backend in sync with a graph.
//
// Changes are buffered per subject. A single goroutine per subject reads the
// stored record, merges the buffered values into it and writes it back,
// repeating until nothing is buffered. Subjects that become observed are
// read from the backend and fed into the graph.
type Adapter struct {
	g       *graph.Graph
	backend Backend
	filter  graph.Filter
	epsilon float64
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	pending    map[string]*pending
	running    map[string]bool
	closed     bool
	errs       error
	wg         sync.WaitGroup
	disconnect func()
	closeOnce  sync.Once

	idMu  sync.Mutex
	id    string
	isNew bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithFilter limits the subjects that are stored and loaded.
func WithFilter(f graph.Filter) Option {
	return func(a *Adapter) {
		if f != nil {
			a.filter = f
		}
	}
}

// WithEpsilon sets the numeric tie-break distance used when merging.
func WithEpsilon(eps float64) Option {
	return func(a *Adapter) {
		a.epsilon = eps
	}
}

// WithLogger scopes adapter logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAdapter connects backend to g. Subjects already observed are loaded
// right away.
func NewAdapter(g *graph.Graph, backend Backend, opts ...Option) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		g:       g,
		backend: backend,
		filter:  graph.All,
		epsilon: graph.DefaultEpsilon,
		log:     slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pending),
		running: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.disconnect = g.Connect(a.filter, a)
	for _, subject := range g.Observed() {
		if a.filter(subject) {
			a.load(subject)
		}
	}
	return a
}

// OnChange buffers a change for writing.
func (a *Adapter) OnChange(t value.ChangeTuple) {
	key := value.Key(t.Subject)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	p, ok := a.pending[key]
	if !ok {
		p = &pending{subject: t.Subject.Clone(), props: Record{}}
		a.pending[key] = p
	}
	p.props.Merge(t.Prop, t.Value, a.epsilon)
	if a.running[key] {
		return
	}
	a.running[key] = true
	a.wg.Add(1)
	go a.persist(key)
}

// OnObserved loads a subject when it becomes observed.
func (a *Adapter) OnObserved(subject value.Subject, observed bool) {
	if observed {
		a.load(subject)
	}
}

func (a *Adapter) load(subject value.Subject) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	subject = subject.Clone()
	go func() {
		defer a.wg.Done()
		rec, err := Load(a.ctx, a.backend, subject)
		if err != nil {
			a.log.Warn("load failed", "subject", subject.String(), "error", err)
			return
		}
		if len(rec) == 0 {
			return
		}
		a.log.Debug("loaded", "subject", subject.String(), "props", len(rec))
		a.g.Feed(rec.Tuples(subject)...)
	}()
}

// persist runs the write loop for one subject key.
func (a *Adapter) persist(key string) {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		p := a.pending[key]
		delete(a.pending, key)
		if p == nil {
			delete(a.running, key)
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		if err := a.write(key, p); err != nil {
			a.log.Error("persist failed", "subject", p.subject.String(), "error", err)
			a.mu.Lock()
			a.errs = multierr.Append(a.errs, err)
			a.mu.Unlock()
		}
	}
}

func (a *Adapter) write(key string, p *pending) error {
	rec, err := loadKey(a.ctx, a.backend, key)
	if err != nil {
		return fmt.Errorf("persist %s: %w", p.subject, err)
	}
	changed := false
	for prop, v := range p.props {
		if rec.Merge(prop, v, a.epsilon) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persist %s: %w", p.subject, err)
	}
	if err := a.backend.Set(a.ctx, key, data); err != nil {
		return fmt.Errorf("persist %s: %w", p.subject, err)
	}
	return nil
}

// UUID returns the id of the backing store, creating it on first use.
// isNew reports whether this adapter created it.
func (a *Adapter) UUID(ctx context.Context) (id string, isNew bool, err error) {
	a.idMu.Lock()
	defer a.idMu.Unlock()
	if a.id != "" {
		return a.id, a.isNew, nil
	}

	data, ok, err := a.backend.Get(ctx, UUIDKey)
	if err != nil {
		return "", false, fmt.Errorf("read store id: %w", err)
	}
	if ok && len(data) > 0 {
		a.id = string(data)
		return a.id, false, nil
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", false, fmt.Errorf("generate store id: %w", err)
	}
	if err := a.backend.Set(ctx, UUIDKey, []byte(u.String())); err != nil {
		return "", false, fmt.Errorf("write store id: %w", err)
	}
	a.id, a.isNew = u.String(), true
	return a.id, true, nil
}

// Disconnect stops listening to the graph and waits for buffered writes.
// The backend stays open. Write errors seen during the adapter's lifetime are
// returned by the first call.
func (a *Adapter) Disconnect() error {
	a.disconnect()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
	a.cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errs
}

// Close disconnects and closes the backend.
func (a *Adapter) Close() error {
	err := a.Disconnect()
	a.closeOnce.Do(func() {
		err = multierr.Append(err, a.backend.Close())
	})
	return err
}
