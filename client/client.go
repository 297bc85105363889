// Package client provides a JSON-RPC 2.0 client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
)

// Transport carries one encoded payload to the server. When expectReply is
// false the payload holds only notifications and the transport must not
// wait for a reply.
type Transport interface {
	RoundTrip(ctx context.Context, payload []byte, expectReply bool) ([]byte, error)
	Close() error
}

// ErrNoResponse is returned when the server sent nothing back for a call.
var ErrNoResponse = errors.New("client: no response")

// Client calls methods on a JSON-RPC server.
type Client struct {
	transport Transport
	timeout   time.Duration
	nextID    atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client on top of transport.
func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes method and decodes its result into result, which may be nil.
// Params are sent by name for structs and maps and by position for slices.
// A server error is returned as *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id := c.newID()
	payload, err := encodeRequest(method, params, id)
	if err != nil {
		return err
	}

	reply, err := c.transport.RoundTrip(ctx, payload, true)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if len(reply) == 0 {
		return fmt.Errorf("call %s: %w", method, ErrNoResponse)
	}

	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return fmt.Errorf("call %s: decode response: %w", method, err)
	}
	return resp.decode(result)
}

// Notify sends a notification. The server sends nothing back.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	payload, err := encodeRequest(method, params, nil)
	if err != nil {
		return err
	}
	if _, err := c.transport.RoundTrip(ctx, payload, false); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return nil
}

// BatchElem is one call of a batch. After Batch returns, Error holds the
// element's own failure and Result has been filled on success.
type BatchElem struct {
	Method       string
	Params       any
	Result       any
	Notification bool
	Error        error
}

// Batch sends elems as one batch payload. The returned error covers the
// exchange as a whole; per-call failures land in each element's Error.
func (c *Client) Batch(ctx context.Context, elems []*BatchElem) error {
	if len(elems) == 0 {
		return errors.New("client: empty batch")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	byID := make(map[string]*BatchElem, len(elems))
	requests := make([]json.RawMessage, 0, len(elems))
	for _, elem := range elems {
		var id json.RawMessage
		if !elem.Notification {
			id = c.newID()
			byID[string(id)] = elem
		}
		req, err := encodeRequest(elem.Method, elem.Params, id)
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}

	payload, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	reply, err := c.transport.RoundTrip(ctx, payload, len(byID) > 0)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if len(byID) == 0 {
		return nil
	}
	if len(reply) == 0 {
		return fmt.Errorf("batch: %w", ErrNoResponse)
	}

	var responses []response
	if err := json.Unmarshal(reply, &responses); err != nil {
		var single response
		if json.Unmarshal(reply, &single) == nil && single.Error != nil {
			return single.Error
		}
		return fmt.Errorf("batch: decode response: %w", err)
	}

	for _, resp := range responses {
		elem, ok := byID[string(resp.ID)]
		if !ok {
			continue
		}
		delete(byID, string(resp.ID))
		elem.Error = resp.decode(elem.Result)
	}
	for _, elem := range byID {
		elem.Error = ErrNoResponse
	}
	return nil
}

// Discover fetches the server's OpenRPC document.
func (c *Client) Discover(ctx context.Context) (*server.Document, error) {
	var doc server.Document
	if err := c.Call(ctx, protocol.MethodDiscover, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) newID() json.RawMessage {
	return json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
}

func encodeRequest(method string, params any, id json.RawMessage) ([]byte, error) {
	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params for %s: %w", method, err)
		}
		if !bytes.HasPrefix(raw, []byte("{")) && !bytes.HasPrefix(raw, []byte("[")) {
			return nil, fmt.Errorf("params for %s must encode to an object or array", method)
		}
		req.Params = raw
	}
	return json.Marshal(req)
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *protocol.Error `json:"error"`
}

func (r *response) decode(result any) error {
	if r.Error != nil {
		return r.Error
	}
	if result == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
