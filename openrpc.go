// Package openrpc builds transport-agnostic JSON-RPC 2.0 services that
// describe themselves with OpenRPC.
//
// Methods are plain Go functions. Their parameter structs and result types
// are reflected into JSON Schemas, params are validated and bound by name
// or position, and the rpc.discover method serves the generated document:
//
//	srv := openrpc.NewServer(openrpc.Info{
//	    Title:   "calc",
//	    Version: "1.0.0",
//	})
//
//	type AddParams struct {
//	    A int `json:"a" jsonschema:"description=first addend"`
//	    B int `json:"b" default:"0"`
//	}
//
//	srv.Method("add").
//	    Summary("Add two integers").
//	    Handler(func(ctx context.Context, p AddParams) (int, error) {
//	        return p.A + p.B, nil
//	    })
//
//	openrpc.ServeHTTP(ctx, srv, ":8080")
//
// The dispatcher itself only consumes and produces bytes; see Server.Dispatch
// to plug it into any transport.
package openrpc

import (
	"context"
	"time"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// Core types.
type (
	Info           = server.Info
	Server         = server.Server
	Option         = server.Option
	Router         = server.Router
	MethodEntry    = server.MethodEntry
	ParamStructure = server.ParamStructure
	Document       = server.Document
	ServerObject   = server.ServerObject
	Provider       = server.Provider
	SecurityFunc   = server.SecurityFunc
	Error          = protocol.Error
	RequestMeta    = protocol.RequestMeta
)

// Discovery documentation types.
type (
	Contact           = server.Contact
	License           = server.License
	ServerVariable    = server.ServerVariable
	ContentDescriptor = server.ContentDescriptor
	ExternalDocs      = server.ExternalDocs
	ErrorObject       = server.ErrorObject
	Link              = server.Link
	ExamplePairing    = server.ExamplePairing
	Example           = server.Example
)

// Optional is a parameter that may be left out of params entirely.
type Optional[T any] = server.Optional[T]

// Future is the result of an asynchronous method.
type Future[T any] = server.Future[T]

// Param structures.
const (
	ParamsEither     = server.ParamsEither
	ParamsByName     = server.ParamsByName
	ParamsByPosition = server.ParamsByPosition
)

// Server options.
var (
	WithDebug            = server.WithDebug
	WithServerLogger     = server.WithLogger
	WithDefaultErrorCode = server.WithDefaultErrorCode
	WithBatchConcurrency = server.WithBatchConcurrency
	WithSecuritySchemes  = server.WithSecuritySchemes
	WithSecurityFunction = server.WithSecurityFunction
	WithSecurityPolicy   = server.WithSecurityPolicy
	WithServers          = server.WithServers
	NewRouter            = server.NewRouter
	WithTags             = server.WithTags
	WithCaller           = server.WithCaller
)

// NewServer creates a new server.
func NewServer(info Info, opts ...Option) *Server {
	return server.New(info, opts...)
}

// Some returns a defined Optional holding v.
func Some[T any](v T) Optional[T] {
	return server.Some(v)
}

// Provide wraps fn as a dependency provider.
func Provide[T any](fn func(ctx context.Context, caller any) (T, error)) *Provider {
	return server.Provide(fn)
}

// Go runs fn in a new goroutine and returns its future.
func Go[T any](fn func() (T, error)) *Future[T] {
	return server.Go(fn)
}

// NewError creates an application error with an arbitrary code.
func NewError(code int, msg string) *Error {
	return protocol.NewError(code, msg)
}

// Security types.
type (
	Scheme      = security.Scheme
	Grants      = security.Grants
	Requirement = security.Requirement
	Policy      = security.Policy
)

// Security helpers.
var (
	Bearer     = security.Bearer
	APIKey     = security.APIKey
	OAuth2     = security.OAuth2
	RequireAll = security.RequireAll
	RequireAny = security.RequireAny
)

// Middleware types.
type (
	Middleware            = middleware.Middleware
	MiddlewareHandlerFunc = middleware.HandlerFunc
	Logger                = middleware.Logger
	LogField              = middleware.Field
	RateLimitOption       = middleware.RateLimitOption
	SizeLimitOption       = middleware.SizeLimitOption
	TimeoutConfig         = middleware.TimeoutConfig
	StackConfig           = middleware.StackConfig
)

// Middleware constructors.
var (
	Chain                = middleware.Chain
	Recover              = middleware.Recover
	RecoverWithHandler   = middleware.RecoverWithHandler
	Timeout              = middleware.Timeout
	TimeoutWith          = middleware.TimeoutWith
	RequestID            = middleware.RequestID
	RequestIDFromContext = middleware.RequestIDFromContext
	Logging              = middleware.Logging
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByClient    = middleware.RateLimitByClient
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
	SizeLimit            = middleware.SizeLimit
	WithSizeLimitLogger  = middleware.WithSizeLimitLogger
	LogF                 = middleware.F
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// DefaultMiddleware returns the default middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// NewMiddlewareStack returns the default stack with the given call
// deadlines.
func NewMiddlewareStack(logger Logger, cfg StackConfig) []Middleware {
	return middleware.NewStack(logger, cfg)
}

// DefaultMiddlewareWithTimeout returns the default stack with a per-call
// timeout.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// Transport options.
type (
	HTTPOption      = transport.HTTPOption
	WebSocketOption = transport.WebSocketOption
	StdioOption     = transport.StdioOption
)

// Transport option constructors.
var (
	WithReadTimeout           = transport.WithReadTimeout
	WithWriteTimeout          = transport.WithWriteTimeout
	WithPath                  = transport.WithPath
	WithMaxBodySize           = transport.WithMaxBodySize
	WithCORS                  = transport.WithCORS
	WithDefaultCORS           = transport.WithDefaultCORS
	WithWebSocketReadTimeout  = transport.WithWebSocketReadTimeout
	WithWebSocketWriteTimeout = transport.WithWebSocketWriteTimeout
)

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware []Middleware
	logger     Logger
}

// WithMiddleware adds middleware around every method call.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithLogger installs the default middleware stack logging to l.
func WithLogger(l Logger) ServeOption {
	return func(o *serveOptions) {
		o.logger = l
	}
}

// Handler prepares srv for serving and returns it as a transport handler.
// Middleware must be added before the first payload is dispatched.
func Handler(srv *Server, opts ...ServeOption) transport.Handler {
	var o serveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		srv.Use(middleware.DefaultStack(o.logger)...)
	}
	if len(o.middleware) > 0 {
		srv.Use(o.middleware...)
	}
	srv.Freeze()
	return transport.HandlerFunc(srv.Dispatch)
}

// ServeStdio serves srv over stdin and stdout until EOF or ctx is canceled.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	return transport.NewStdio().Serve(ctx, Handler(srv, opts...))
}

// ServeHTTP serves srv over HTTP at addr.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...HTTPOption) error {
	return transport.NewHTTP(addr, opts...).Serve(ctx, Handler(srv))
}

// ServeHTTPWithMiddleware is like ServeHTTP with serve options.
func ServeHTTPWithMiddleware(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, serveOpts ...ServeOption) error {
	return transport.NewHTTP(addr, httpOpts...).Serve(ctx, Handler(srv, serveOpts...))
}

// ServeWebSocket serves srv over WebSocket at addr.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	return transport.NewWebSocket(addr, opts...).Serve(ctx, Handler(srv))
}

// ServeWebSocketWithMiddleware is like ServeWebSocket with serve options.
func ServeWebSocketWithMiddleware(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, serveOpts ...ServeOption) error {
	return transport.NewWebSocket(addr, wsOpts...).Serve(ctx, Handler(srv, serveOpts...))
}
