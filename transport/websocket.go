package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// WebSocket serves JSON-RPC over WebSocket connections. Every text message
// is one payload. Messages on a connection are handled concurrently, so
// responses may arrive in a different order than their requests.
type WebSocket struct {
	addr     string
	upgrader websocket.Upgrader

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu         sync.RWMutex
	server     *http.Server
	listenAddr string
	clients    map[*wsClient]struct{}
}

type wsClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets how long a connection may stay idle.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the write timeout for outgoing messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketCheckOrigin sets the origin check for upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) {
		ws.upgrader.CheckOrigin = fn
	}
}

// NewWebSocket creates a new WebSocket transport. All origins are allowed
// unless WithWebSocketCheckOrigin is given.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		clients:      make(map[*wsClient]struct{}),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Addr returns the configured address.
func (ws *WebSocket) Addr() string {
	return ws.addr
}

// ListenAddr returns the address the server is listening on once Serve has
// started.
func (ws *WebSocket) ListenAddr() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.listenAddr
}

// Serve starts the WebSocket server. Connections are upgraded on any path.
func (ws *WebSocket) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", ws.addr, err)
	}

	ws.mu.Lock()
	ws.listenAddr = listener.Addr().String()
	ws.server = &http.Server{
		Handler: ws.HandlerContext(ctx, handler),
	}
	srv := ws.server
	ws.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.closeAllClients()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns an http.Handler that upgrades requests and serves
// payloads until the connection closes.
func (ws *WebSocket) Handler(handler Handler) http.Handler {
	return ws.HandlerContext(context.Background(), handler)
}

// HandlerContext is like Handler, but calls run under ctx and connections
// close when ctx is canceled.
func (ws *WebSocket) HandlerContext(ctx context.Context, handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.serveConn(ctx, w, r, handler)
	})
}

func (ws *WebSocket) serveConn(ctx context.Context, w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn, writeTimeout: ws.writeTimeout}
	ws.mu.Lock()
	ws.clients[client] = struct{}{}
	ws.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		ws.mu.Lock()
		delete(ws.clients, client)
		ws.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		<-connCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	connCtx = protocol.ContextWithRequestMeta(connCtx, headerMeta(r.Header))
	connCtx = ContextWithNotificationSender(connCtx, client)

	for {
		if ws.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		}
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := handler.Handle(connCtx, payload); resp != nil {
				_ = client.write(resp)
			}
		}()
	}
}

func (ws *WebSocket) closeAllClients() {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for client := range ws.clients {
		client.close()
	}
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// SendNotification writes a notification to the connection.
func (c *wsClient) SendNotification(method string, params any) error {
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(data)
}
