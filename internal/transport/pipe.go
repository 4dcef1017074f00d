package transport

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
)

// pipeBuffer is the number of messages a pipe direction holds before
// writers block.
const pipeBuffer = 256

type pipeConn struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	remote chan struct{}
	once   sync.Once
}

// Pipe returns two connected in-memory connections. Messages are JSON
// encoded in between, exactly as on a websocket.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})
	a := &pipeConn{in: ba, out: ab, closed: aClosed, remote: bClosed}
	b := &pipeConn{in: ab, out: ba, closed: bClosed, remote: aClosed}
	return a, b
}

func (c *pipeConn) ReadMessage(ctx context.Context) (Message, error) {
	var data []byte
	select {
	case data = <-c.in:
	default:
		select {
		case data = <-c.in:
		case <-c.closed:
			return Message{}, net.ErrClosed
		case <-c.remote:
			select {
			case data = <-c.in:
			default:
				return Message{}, io.EOF
			}
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *pipeConn) WriteMessage(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-c.remote:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
