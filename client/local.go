package client

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/transport"
)

// LocalTransport hands payloads straight to an in-process handler, such as
// transport.HandlerFunc(srv.Dispatch).
type LocalTransport struct {
	handler transport.Handler
}

// NewLocalTransport creates an in-process transport.
func NewLocalTransport(handler transport.Handler) *LocalTransport {
	return &LocalTransport{handler: handler}
}

// RoundTrip dispatches payload in the calling goroutine.
func (t *LocalTransport) RoundTrip(ctx context.Context, payload []byte, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.handler.Handle(ctx, payload), nil
}

// Close is a no-op.
func (t *LocalTransport) Close() error {
	return nil
}
