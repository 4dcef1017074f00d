package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ssured/drawbot/internal/config"
	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/transport"
)

// DefaultSettle is how long get and set wait for the hub.
const DefaultSettle = 500 * time.Millisecond

// ClientOptions holds the flags shared by commands that talk to a hub.
type ClientOptions struct {
	*RootOptions
	Hub    string
	Settle time.Duration
}

// hubURL returns the hub to dial: the --hub flag, else the configured
// listen address.
func (o *ClientOptions) hubURL(cfg config.Config) string {
	if o.Hub != "" {
		return o.Hub
	}
	host := cfg.Listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "ws://" + host + "/"
}

// session is a short-lived client graph connected to a hub.
type session struct {
	g    *graph.Graph
	peer *transport.Peer
	done chan error
}

func dialHub(ctx context.Context, url string, cfg config.Config, opts ...transport.Option) (*session, error) {
	conn, err := transport.Dial(ctx, url, settingsFrom(cfg))
	if err != nil {
		return nil, err
	}
	g := graph.New(
		graph.WithClock(graph.NewWallClock(uuid.NewString()[:8])),
		graph.WithEpsilon(cfg.Epsilon),
	)
	opts = append([]transport.Option{transport.WithLookback(uint64(cfg.Lookback))}, opts...)
	s := &session{
		g:    g,
		peer: transport.NewPeer(g, conn, transport.Client, opts...),
		done: make(chan error, 1),
	}
	go func() { s.done <- s.peer.Run(ctx) }()

	select {
	case <-s.peer.Ready():
		return s, nil
	case err := <-s.done:
		_ = g.Close()
		if err == nil {
			err = fmt.Errorf("hub closed the connection")
		}
		return nil, err
	}
}

// settle waits d, or less when the connection ends first.
func (s *session) settle(ctx context.Context, d time.Duration) error {
	select {
	case err := <-s.done:
		s.done <- err
		if err == nil {
			return fmt.Errorf("hub closed the connection")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *session) close() {
	s.peer.Close()
	if err := <-s.done; err != nil {
		slog.Debug("session ended", "error", err)
	}
	if err := s.g.Close(); err != nil {
		slog.Debug("closing graph", "error", err)
	}
}
