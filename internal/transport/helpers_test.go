package transport

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// recordingConn keeps every message read through it.
type recordingConn struct {
	Conn
	mu       sync.Mutex
	received []Message
}

func (c *recordingConn) ReadMessage(ctx context.Context) (Message, error) {
	msg, err := c.Conn.ReadMessage(ctx)
	if err == nil {
		c.mu.Lock()
		c.received = append(c.received, msg)
		c.mu.Unlock()
	}
	return msg, err
}

func (c *recordingConn) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.received))
	copy(out, c.received)
	return out
}

func (c *recordingConn) tuples() []Message {
	var out []Message
	for _, m := range c.messages() {
		if m.Tuple != nil {
			out = append(out, m)
		}
	}
	return out
}

// runPeer starts p and returns a channel with its result.
func runPeer(ctx context.Context, p *Peer) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return done
}
