package server

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// HandlerFunc handles one call.
type HandlerFunc = middleware.HandlerFunc

// Middleware wraps a handler with additional behavior.
type Middleware = middleware.Middleware

// Chain composes middleware in order, executing first middleware first.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

type callerKey struct{}

// WithCaller attaches the caller value handed to dependency providers and
// the security function. When no caller is attached, the transport's
// protocol.RequestMeta is used instead.
func WithCaller(ctx context.Context, caller any) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller value for ctx.
func CallerFromContext(ctx context.Context) any {
	if c := ctx.Value(callerKey{}); c != nil {
		return c
	}
	if meta := protocol.RequestMetaFromContext(ctx); meta != nil {
		return meta
	}
	return nil
}
