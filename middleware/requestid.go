package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDMetaKey is the request metadata key checked for a request ID
// supplied by the transport, such as the HTTP X-Request-ID header.
const RequestIDMetaKey = "X-Request-ID"

// RequestID returns middleware that attaches a random UUID to the context.
// An ID already in the context, or supplied by the transport in request
// metadata, is kept.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if existing := RequestIDFromContext(ctx); existing != "" {
				return next(ctx, req)
			}

			id := protocol.GetRequestMeta(ctx, RequestIDMetaKey)
			if id == "" {
				id = generator()
			}
			return next(ContextWithRequestID(ctx, id), req)
		}
	}
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID returns a new context with the request ID set.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
