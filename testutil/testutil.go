// Package testutil provides testing utilities for JSON-RPC servers.
//
// TestClient talks to a server in-process, without a network transport:
//
//	func TestAdd(t *testing.T) {
//	    srv := openrpc.NewServer(openrpc.Info{Title: "calc", Version: "1.0.0"})
//	    srv.Register("add", func(p AddParams) (int, error) { return p.A + p.B, nil })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    tc.AssertResult("add", []int{1, 2}, 3)
//	    tc.AssertError("missing", nil, protocol.CodeMethodNotFound)
//	}
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/client"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// TestClient is an in-process client for a server under test.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	client  *client.Client

	mu   sync.RWMutex
	meta protocol.RequestMeta
}

// NewTestClient creates a test client dispatching straight to srv.
func NewTestClient(t testing.TB, srv *server.Server) *TestClient {
	t.Helper()
	return NewTestClientWithHandler(t, transport.HandlerFunc(srv.Dispatch))
}

// NewTestClientWithHandler creates a test client on top of any payload
// handler, such as a transport-level wrapper around a server.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()

	tc := &TestClient{t: t, handler: handler}
	tc.client = client.New(client.NewLocalTransport(transport.HandlerFunc(tc.handle)))
	return tc
}

// WithMeta sets request metadata, such as an Authorization header, sent
// with every following call.
func (tc *TestClient) WithMeta(meta protocol.RequestMeta) *TestClient {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.meta = meta
	return tc
}

func (tc *TestClient) handle(ctx context.Context, payload []byte) []byte {
	tc.mu.RLock()
	meta := tc.meta
	tc.mu.RUnlock()

	if meta != nil {
		ctx = protocol.ContextWithRequestMeta(ctx, meta)
	}
	return tc.handler.Handle(ctx, payload)
}

// Send dispatches a raw payload and returns the raw reply.
func (tc *TestClient) Send(payload string) []byte {
	tc.t.Helper()
	return tc.handle(context.Background(), []byte(payload))
}

// Call invokes method and decodes the result into result.
func (tc *TestClient) Call(method string, params, result any) error {
	tc.t.Helper()
	return tc.client.Call(context.Background(), method, params, result)
}

// Notify sends a notification.
func (tc *TestClient) Notify(method string, params any) error {
	tc.t.Helper()
	return tc.client.Notify(context.Background(), method, params)
}

// Batch sends elems as one batch.
func (tc *TestClient) Batch(elems ...*client.BatchElem) error {
	tc.t.Helper()
	return tc.client.Batch(context.Background(), elems)
}

// Discover fetches the server's OpenRPC document.
func (tc *TestClient) Discover() (*server.Document, error) {
	tc.t.Helper()
	return tc.client.Discover(context.Background())
}

// AssertResult calls method and fails the test unless it succeeds with a
// result equal to want after a JSON round trip.
func (tc *TestClient) AssertResult(method string, params, want any) {
	tc.t.Helper()

	var got json.RawMessage
	if err := tc.Call(method, params, &got); err != nil {
		tc.t.Errorf("%s: unexpected error: %v", method, err)
		return
	}

	wantJSON, err := json.Marshal(want)
	if err != nil {
		tc.t.Fatalf("%s: marshal expected result: %v", method, err)
	}

	var gotValue, wantValue any
	_ = json.Unmarshal(got, &gotValue)
	_ = json.Unmarshal(wantJSON, &wantValue)
	if !reflect.DeepEqual(gotValue, wantValue) {
		tc.t.Errorf("%s: result = %s, want %s", method, got, wantJSON)
	}
}

// AssertError calls method and fails the test unless it fails with code.
// It returns the error for further checks.
func (tc *TestClient) AssertError(method string, params any, code int) *protocol.Error {
	tc.t.Helper()

	err := tc.Call(method, params, nil)
	var rpcErr *protocol.Error
	if !errors.As(err, &rpcErr) {
		tc.t.Errorf("%s: error = %v, want code %d", method, err, code)
		return nil
	}
	if rpcErr.Code != code {
		tc.t.Errorf("%s: error code = %d (%s), want %d", method, rpcErr.Code, rpcErr.Message, code)
	}
	return rpcErr
}

// AssertMethodExists fails the test unless discovery lists name.
func (tc *TestClient) AssertMethodExists(name string) {
	tc.t.Helper()

	doc, err := tc.Discover()
	if err != nil {
		tc.t.Fatalf("discover: %v", err)
	}
	for _, m := range doc.Methods {
		if m.Name == name {
			return
		}
	}
	tc.t.Errorf("method %q not found", name)
}

// Recorder is a handler that records payloads and replies passing through
// it to the next handler.
type Recorder struct {
	next transport.Handler

	mu       sync.Mutex
	payloads [][]byte
	replies  [][]byte
}

// NewRecorder wraps next.
func NewRecorder(next transport.Handler) *Recorder {
	return &Recorder{next: next}
}

// Handle records payload, forwards it and records the reply.
func (r *Recorder) Handle(ctx context.Context, payload []byte) []byte {
	reply := r.next.Handle(ctx, payload)

	r.mu.Lock()
	r.payloads = append(r.payloads, payload)
	r.replies = append(r.replies, reply)
	r.mu.Unlock()
	return reply
}

// Payloads returns the recorded payloads in arrival order.
func (r *Recorder) Payloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.payloads...)
}

// Replies returns the recorded replies; nil entries mark payloads that
// got no reply.
func (r *Recorder) Replies() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.replies...)
}

// Reset clears the recordings.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = nil
	r.replies = nil
}
