package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Defaults for the HTTP transport.
const (
	DefaultPath        = "/rpc"
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// HTTP serves JSON-RPC over HTTP POST. Every request body is one payload;
// payloads that produce no response are answered with 204 No Content.
//
// Endpoints:
//   - POST /rpc: JSON-RPC payloads
//   - GET /health: health check, 503 while draining
type HTTP struct {
	addr         string
	path         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBodySize  int64
	corsConfig   *CORSConfig

	shutdownTimeout time.Duration
	drainDelay      time.Duration
	shutdown        *ShutdownManager

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithPath sets the path payloads are posted to.
func WithPath(path string) HTTPOption {
	return func(h *HTTP) {
		h.path = path
	}
}

// WithMaxBodySize limits request bodies to n bytes.
func WithMaxBodySize(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBodySize = n
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		path:            DefaultPath,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		maxBodySize:     DefaultMaxBodySize,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.shutdown = NewShutdownManager(ShutdownConfig{
		Timeout:    h.shutdownTimeout,
		DrainDelay: h.drainDelay,
	})
	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the address the server is listening on once Serve has
// started.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server. When ctx is canceled it stops accepting
// payloads, waits for in-flight ones and shuts the server down.
func (h *HTTP) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = &http.Server{
		Handler:      h.Handler(handler),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	srv := h.server
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout+h.drainDelay)
		defer cancel()
		drainErr := h.shutdown.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if drainErr != nil {
			return drainErr
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the transport's routes as an http.Handler, for mounting
// into an existing server.
func (h *HTTP) Handler(handler Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc(h.path, func(w http.ResponseWriter, r *http.Request) {
		h.handleRPC(w, r, handler)
	})

	if h.corsConfig != nil {
		return CORSHandler(*h.corsConfig, mux)
	}
	return mux
}

func (h *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "ok"
	if h.shutdown.IsDraining() {
		status = "draining"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (h *HTTP) handleRPC(w http.ResponseWriter, r *http.Request, handler Handler) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.shutdown.TrackRequest() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer h.shutdown.CompleteRequest()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := protocol.ContextWithRequestMeta(r.Context(), headerMeta(r.Header))
	resp := handler.Handle(ctx, body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
