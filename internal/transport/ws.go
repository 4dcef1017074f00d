package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ssured/drawbot/internal/graph"
)

// Settings tunes a websocket connection.
type Settings struct {
	// PingInterval is the time between keep-alive pings.
	PingInterval time.Duration
	// ReadTimeout is how long a connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout bounds every single write.
	WriteTimeout time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		PingInterval: 15 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type wsConn struct {
	ws       *websocket.Conn
	settings Settings
	done     chan struct{}
	once     sync.Once
}

// NewWSConn wraps an established websocket and starts its keep-alive pings.
func NewWSConn(ws *websocket.Conn, settings Settings) Conn {
	c := &wsConn{ws: ws, settings: settings, done: make(chan struct{})}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(deadline(settings.ReadTimeout))
	})
	if settings.PingInterval > 0 {
		go c.ping()
	}
	return c
}

// deadline returns now+d, or no deadline when d is not positive.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func (c *wsConn) ping() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline(c.settings.WriteTimeout)); err != nil {
				// a deadline timeout cannot be recovered on a websocket
				slog.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *wsConn) ReadMessage(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		if err := c.ws.SetReadDeadline(deadline(c.settings.ReadTimeout)); err != nil {
			return Message{}, err
		}
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Message{}, io.EOF
			}
			return Message{}, err
		}
		if messageType != websocket.TextMessage {
			slog.Debug("ignoring non-text message", "type", messageType)
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return Message{}, err
		}
		return msg, nil
	}
}

func (c *wsConn) WriteMessage(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	until := deadline(c.settings.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && (until.IsZero() || d.Before(until)) {
		until = d
	}
	if err := c.ws.SetWriteDeadline(until); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline(c.settings.WriteTimeout))
		err = c.ws.Close()
	})
	return err
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string, settings Settings) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSConn(ws, settings), nil
}

// Handler upgrades HTTP requests to websockets and serves each one with a
// server peer on its graph.
type Handler struct {
	ctx      context.Context
	g        *graph.Graph
	settings Settings
	opts     []Option
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

// NewHandler creates a handler whose peers live until ctx is done.
func NewHandler(ctx context.Context, g *graph.Graph, settings Settings, opts ...Option) *Handler {
	return &Handler{
		ctx:      ctx,
		g:        g,
		settings: settings,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler. It returns when the peer ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	peer := NewPeer(h.g, NewWSConn(ws, h.settings), Server, h.opts...)
	slog.Debug("websocket accepted", "remote", r.RemoteAddr, "peer", peer.ID())
	if err := peer.Run(h.ctx); err != nil {
		slog.Warn("peer ended", "remote", r.RemoteAddr, "peer", peer.ID(), "error", err)
	}
}

// Wait blocks until every peer served by h has ended.
func (h *Handler) Wait() {
	h.wg.Wait()
}
