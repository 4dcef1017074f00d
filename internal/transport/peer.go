package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/queue"
	"github.com/ssured/drawbot/internal/value"
)

// Conn carries protocol messages. ReadMessage returns io.EOF once the remote
// side closed cleanly. Implementations must allow one reader and one writer
// to run concurrently.
type Conn interface {
	ReadMessage(ctx context.Context) (Message, error)
	WriteMessage(ctx context.Context, msg Message) error
	Close() error
}

// Role selects which half of the protocol a peer speaks.
type Role int

const (
	// Client announces its observed-set and forwards local changes.
	Client Role = 1 << iota
	// Server streams the subjects the remote side observes.
	Server
)

func (r Role) String() string {
	switch r {
	case Client:
		return "client"
	case Server:
		return "server"
	case Client | Server:
		return "client+server"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Option configures a Peer.
type Option func(*Peer)

// WithFilter restricts the subjects the peer sends and accepts.
func WithFilter(f graph.Filter) Option {
	return func(p *Peer) {
		p.filter = f
	}
}

// WithForwardChanges controls whether a client forwards its local change
// log. Default: true.
func WithForwardChanges(forward bool) Option {
	return func(p *Peer) {
		p.forward = forward
	}
}

// WithLookback sets how many received tuples are remembered for echo
// suppression. Default: DefaultLookback.
func WithLookback(n uint64) Option {
	return func(p *Peer) {
		p.seen = newSeenSet(n)
	}
}

// stream serves one subject the remote side observes.
type stream struct {
	view *graph.View
	sent map[string]string
}

// Peer binds a graph to one connection.
//
// Thread-safety model:
//   - Run(): must be called exactly once
//   - Close(): safe from any goroutine
type Peer struct {
	id      string
	g       *graph.Graph
	conn    Conn
	role    Role
	filter  graph.Filter
	forward bool
	seen    *seenSet
	outbox  *queue.Queue[Message]
	log     *slog.Logger
	ready   chan struct{}

	mu        sync.Mutex
	announced map[string]bool
	streams   map[string]*stream
	closeOnce sync.Once
}

// NewPeer creates a peer speaking role over conn.
func NewPeer(g *graph.Graph, conn Conn, role Role, opts ...Option) *Peer {
	p := &Peer{
		id:        ulid.Make().String(),
		g:         g,
		conn:      conn,
		role:      role,
		filter:    graph.All,
		forward:   true,
		seen:      newSeenSet(DefaultLookback),
		outbox:    queue.New[Message](),
		ready:     make(chan struct{}),
		announced: make(map[string]bool),
		streams:   make(map[string]*stream),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.filter == nil {
		p.filter = graph.All
	}
	p.log = slog.Default().With("peer", p.id)
	return p
}

// ID returns the peer's log identifier.
func (p *Peer) ID() string {
	return p.id
}

// Run exchanges messages until the connection ends, ctx is cancelled or
// Close is called. A clean end of the connection returns nil.
func (p *Peer) Run(ctx context.Context) error {
	p.log.Info("peer connected", "role", p.role)
	defer p.log.Info("peer disconnected")

	if p.role&Client != 0 {
		disconnect := p.g.Connect(p.filter, p)
		defer disconnect()
		for _, subject := range p.g.Observed() {
			if p.filter(subject) {
				p.announce(subject, true)
			}
		}
	}
	close(p.ready)
	defer p.stopStreams()
	defer p.outbox.Close()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return p.readLoop(gctx) })
	group.Go(func() error { return p.writeLoop(gctx) })
	group.Go(func() error {
		<-gctx.Done()
		p.Close()
		return nil
	})

	err := group.Wait()
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return nil
	}
	return err
}

// Ready is closed once Run is listening to the graph. Local changes made
// after that are forwarded.
func (p *Peer) Ready() <-chan struct{} {
	return p.ready
}

// Close ends the connection. Run returns shortly after.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		if err := p.conn.Close(); err != nil {
			p.log.Debug("closing connection", "error", err)
		}
	})
}

func (p *Peer) readLoop(ctx context.Context) error {
	for {
		msg, err := p.conn.ReadMessage(ctx)
		if err != nil {
			return err
		}
		if err := p.receive(msg); err != nil {
			p.log.Error("protocol violation", "error", err)
			return err
		}
	}
}

func (p *Peer) writeLoop(ctx context.Context) error {
	for {
		if msg, ok := p.outbox.TryPop(); ok {
			if err := p.conn.WriteMessage(ctx, msg); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.outbox.Wait():
			if p.outbox.Closed() && p.outbox.Len() == 0 {
				return nil
			}
		}
	}
}

func (p *Peer) receive(msg Message) error {
	if msg.Tuple != nil {
		t := msg.Tuple.Strip()
		if !p.filter(t.Subject) {
			return nil
		}
		p.seen.add(t)
		p.g.Feed(t)
		return nil
	}

	if !p.filter(msg.Subject) {
		return nil
	}
	if p.role&Server == 0 {
		p.log.Debug("ignoring observed announcement", "subject", msg.Subject, "observed", msg.Observed)
		return nil
	}
	return p.serve(msg.Subject, msg.Observed)
}

// serve starts or stops the stream for subject.
func (p *Peer) serve(subject value.Subject, observed bool) error {
	key := value.Key(subject)

	p.mu.Lock()
	s, active := p.streams[key]
	if observed == active {
		p.mu.Unlock()
		return graph.NewProtocolError(subject, "observed=%t does not match connection state", observed)
	}
	if !observed {
		delete(p.streams, key)
		p.mu.Unlock()
		if s.view != nil {
			s.view.Stop()
		}
		return nil
	}
	s = &stream{sent: make(map[string]string)}
	p.streams[key] = s
	p.mu.Unlock()

	subject = subject.Clone()
	view := p.g.Autorun(func(v *graph.View) {
		for _, t := range v.Tuples(subject) {
			p.sendTuple(t)
		}
	})

	p.mu.Lock()
	if p.streams[key] == s {
		s.view = view
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	view.Stop()
	return nil
}

func (p *Peer) stopStreams() {
	p.mu.Lock()
	streams := p.streams
	p.streams = make(map[string]*stream)
	p.mu.Unlock()

	for _, s := range streams {
		if s.view != nil {
			s.view.Stop()
		}
	}
}

// sendTuple queues t unless the remote side sent it to us, or a stream for
// its subject already delivered this or a later state of the property.
func (p *Peer) sendTuple(t value.ChangeTuple) {
	if p.seen.has(t) {
		return
	}

	p.mu.Lock()
	if s, ok := p.streams[value.Key(t.Subject)]; ok {
		if t.Value.State <= s.sent[t.Prop] {
			p.mu.Unlock()
			return
		}
		s.sent[t.Prop] = t.Value.State
	}
	p.mu.Unlock()

	p.outbox.Push(TupleMessage(t))
}

// announce queues an observed-set edge unless the remote side already
// knows the subject's state.
func (p *Peer) announce(subject value.Subject, observed bool) {
	key := value.Key(subject)

	p.mu.Lock()
	if p.announced[key] == observed {
		p.mu.Unlock()
		return
	}
	if observed {
		p.announced[key] = true
	} else {
		delete(p.announced, key)
	}
	p.mu.Unlock()

	p.outbox.Push(ObservedMessage(subject.Clone(), observed))
}

// OnChange implements graph.Sink.
func (p *Peer) OnChange(t value.ChangeTuple) {
	if p.forward {
		p.sendTuple(t)
	}
}

// OnObserved implements graph.Sink.
func (p *Peer) OnObserved(subject value.Subject, observed bool) {
	p.announce(subject, observed)
}
