package middleware

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// HandlerFunc handles one call. A nil response with a nil error stands for
// a null result.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middleware so that Chain(m1, m2, m3)(h) runs m1, then m2,
// then m3, then h.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Skip applies m to every call except those to the listed methods.
//
//	middleware.Skip(middleware.Auth(authn), protocol.MethodDiscover)
func Skip(m Middleware, methods ...string) Middleware {
	skip := make(map[string]bool, len(methods))
	for _, name := range methods {
		skip[name] = true
	}
	return func(next HandlerFunc) HandlerFunc {
		wrapped := m(next)
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if skip[req.Method] {
				return next(ctx, req)
			}
			return wrapped(ctx, req)
		}
	}
}

// MiddlewareChain provides a fluent API for building middleware chains.
type MiddlewareChain struct {
	middlewares []Middleware
}

// Use starts a chain with the given middleware.
func Use(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middlewares: middlewares}
}

// Append adds middleware to the end of the chain.
func (c *MiddlewareChain) Append(middlewares ...Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}

// Middleware returns the chain as a single middleware.
func (c *MiddlewareChain) Middleware() Middleware {
	return Chain(c.middlewares...)
}

// Then wraps handler with the chain.
func (c *MiddlewareChain) Then(handler HandlerFunc) HandlerFunc {
	return Chain(c.middlewares...)(handler)
}
