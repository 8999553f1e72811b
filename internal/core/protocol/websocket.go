package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FeedPath is the HTTP path the websocket transport upgrades on.
const FeedPath = "/feed"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed is read-only data; any origin may watch
	CheckOrigin: func(*http.Request) bool { return true },
}

var _ Transport = (*WebSocketTransport)(nil)

// WebSocketTransport moves feed frames over websocket messages. The
// listener side runs a plain HTTP server and bridges upgraded connections
// into Accept through a channel.
type WebSocketTransport struct {
	config Config

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server

	accepted  chan Connection
	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates a new, uninitialized websocket transport.
func NewWebSocketTransport(config Config) *WebSocketTransport {
	return &WebSocketTransport{
		config:   config,
		accepted: make(chan Connection, config.AcceptBacklog),
		closed:   make(chan struct{}),
	}
}

func (t *WebSocketTransport) Kind() Kind { return KindWebSocket }

// Listen starts an HTTP listener on addr and upgrades requests on FeedPath.
func (t *WebSocketTransport) Listen(_ context.Context, addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListenFailed, addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(FeedPath, t.handleUpgrade)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: t.config.HandshakeTimeout,
	}

	t.listener = ln
	t.server = srv

	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			t.closeOnce.Do(func() { close(t.closed) })
		}
	}()
	return nil
}

// Addr returns the bound listener address, for listeners started on ":0".
func (t *WebSocketTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *WebSocketTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wc := newWSConnection(conn, t.config.MaxFrameSize)
	select {
	case t.accepted <- wc:
	case <-t.closed:
		_ = wc.Close()
	}
}

// Accept returns the next upgraded connection.
func (t *WebSocketTransport) Accept(ctx context.Context) (Connection, error) {
	t.mu.Lock()
	listening := t.server != nil
	t.mu.Unlock()
	if !listening {
		return nil, ErrNotListening
	}

	select {
	case conn := <-t.accepted:
		return conn, nil
	case <-t.closed:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dial connects to a feed listener. Addr may be a plain host:port, which
// dials ws://host:port/feed, or a full ws:// URL.
func (t *WebSocketTransport) Dial(ctx context.Context, addr string) (Connection, error) {
	u := addr
	if !strings.Contains(u, "://") {
		u = "ws://" + addr + FeedPath
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.config.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, u, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return newWSConnection(conn, t.config.MaxFrameSize), nil
}

// Close tears down the listener and unblocks pending Accepts.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.server != nil {
		err := t.server.Close()
		t.server = nil
		t.listener = nil
		return err
	}
	return nil
}

var _ Connection = (*wsConnection)(nil)

// wsConnection wraps a gorilla connection. Gorilla allows one concurrent
// writer, so writes go through a mutex.
type wsConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConnection(conn *websocket.Conn, maxFrame int) *wsConnection {
	if maxFrame > 0 {
		conn.SetReadLimit(int64(maxFrame))
	}
	return &wsConnection{conn: conn}
}

// Read returns the next websocket message. The context deadline, when set,
// bounds the read.
func (c *wsConnection) Read(ctx context.Context) ([]byte, error) {
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrConnectionClosed
		}
		// Deadline expiry surfaces as a net timeout; report it the same
		// way the context would so callers have one condition to check.
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("read message: %w", err)
	}
	return data, nil
}

// Write sends one websocket binary message.
func (c *wsConnection) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close sends a best-effort close frame and tears the connection down.
func (c *wsConnection) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *wsConnection) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *wsConnection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
