package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/schema"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// Info contains server metadata exposed through discovery.
type Info struct {
	Title          string   `json:"title"`
	Version        string   `json:"version"`
	Description    string   `json:"description,omitempty"`
	TermsOfService string   `json:"termsOfService,omitempty"`
	Contact        *Contact `json:"contact,omitempty"`
	License        *License `json:"license,omitempty"`
}

// Contact is the contact information for the exposed API.
type Contact struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Email string `json:"email,omitempty"`
}

// License is the license of the exposed API.
type License struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Default info values.
const (
	DefaultTitle   = "RPC Server"
	DefaultVersion = "0.1.0"
)

// SecurityFunc determines the grants of the caller of one call. It runs with
// the call's dependency scope, so it may Resolve providers.
type SecurityFunc func(ctx context.Context, caller any) (security.Grants, error)

// Option configures a Server.
type Option func(*Server)

// Server is a JSON-RPC server instance. Methods are registered up front;
// the first dispatch freezes the registry.
type Server struct {
	info     Info
	servers  []ServerObject
	registry *Registry

	middleware []Middleware
	logger     middleware.Logger
	adapter    schema.Adapter

	debug      bool
	errorCode  int
	batchLimit int

	schemes    map[string]security.Scheme
	securityFn SecurityFunc
	policy     security.Policy

	freezeOnce sync.Once
	handler    HandlerFunc
	doc        *Document
}

// WithDebug includes error details in error data.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithLogger sets the logger for dispatch-level events.
func WithLogger(l middleware.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithSchemaAdapter replaces the adapter used to coerce params.
func WithSchemaAdapter(a schema.Adapter) Option {
	return func(s *Server) {
		s.adapter = a
	}
}

// WithDefaultErrorCode sets the code used for errors returned by methods
// that are not *protocol.Error. The default is -32000.
func WithDefaultErrorCode(code int) Option {
	return func(s *Server) {
		s.errorCode = code
	}
}

// WithBatchConcurrency limits how many batch elements run at once.
// Zero or less means no limit.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		s.batchLimit = n
	}
}

// WithSecuritySchemes sets the security schemes. Without schemes every call
// is authorized.
func WithSecuritySchemes(schemes map[string]security.Scheme) Option {
	return func(s *Server) {
		s.schemes = schemes
	}
}

// WithSecurityFunction sets the function that determines caller grants
// when none were attached to the context.
func WithSecurityFunction(fn SecurityFunc) Option {
	return func(s *Server) {
		s.securityFn = fn
	}
}

// WithSecurityPolicy sets how multi-scheme requirements are satisfied.
func WithSecurityPolicy(p security.Policy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// WithServers sets the servers listed in discovery.
func WithServers(servers ...ServerObject) Option {
	return func(s *Server) {
		s.servers = servers
	}
}

// WithMiddleware adds middleware around every call.
func WithMiddleware(m ...Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, m...)
	}
}

// New creates a server with the given info and options.
func New(info Info, opts ...Option) *Server {
	if info.Title == "" {
		info.Title = DefaultTitle
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}

	s := &Server{
		info:      info,
		servers:   []ServerObject{{Name: "default", URL: "localhost"}},
		registry:  NewRegistry(),
		logger:    middleware.NopLogger{},
		adapter:   schema.JSONAdapter{},
		errorCode: protocol.CodeServerError,
	}
	for _, opt := range opts {
		opt(s)
	}

	discover := &MethodEntry{
		Name:           protocol.MethodDiscover,
		Summary:        "Returns an OpenRPC schema as a description of this service.",
		ParamStructure: ParamsEither,
		builtin:        true,
	}
	if err := parseHandler(discover, s.discoverMethod, nil); err != nil {
		panic(err)
	}
	if err := s.registry.Register(discover); err != nil {
		panic(err)
	}
	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	return s.info
}

// Debug reports whether debug mode is enabled.
func (s *Server) Debug() bool {
	return s.debug
}

// Use registers middleware executed around every call. It panics once the
// server has started dispatching.
func (s *Server) Use(m ...Middleware) {
	if s.registry.Frozen() {
		panic("server: Use called after first dispatch")
	}
	s.middleware = append(s.middleware, m...)
}

// Method starts building a new method with the given name.
func (s *Server) Method(name string) *MethodBuilder {
	return newMethodBuilder(s, name)
}

// Register registers fn under name with default settings.
func (s *Server) Register(name string, fn any) error {
	return s.Method(name).Handler(fn)
}

// Include copies the methods of r into the server with prefix prepended.
// On error nothing is copied.
func (s *Server) Include(r *Router, prefix string, opts ...IncludeOption) error {
	cfg := includeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	entries := prefixed(r.snapshot(), prefix, cfg.tags)
	if err := s.registry.RegisterAll(entries); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	s.logger.Debug("router included",
		middleware.F("prefix", prefix),
		middleware.F("methods", len(entries)),
	)
	return nil
}

// Lookup returns the method registered under name, including rpc.discover.
func (s *Server) Lookup(name string) (*MethodEntry, bool) {
	return s.registry.Lookup(name)
}

// Methods returns the user methods in registration order.
func (s *Server) Methods() []*MethodEntry {
	return s.registry.Methods()
}

// Freeze stops further registration and builds the call chain. Dispatch
// calls it implicitly.
func (s *Server) Freeze() {
	s.freezeOnce.Do(func() {
		s.registry.Freeze()
		s.handler = Chain(s.middleware...)(s.call)
		s.doc = s.buildDocument()
		s.logger.Debug("server frozen",
			middleware.F("methods", len(s.registry.Methods())),
		)
	})
}

func (s *Server) register(e *MethodEntry) error {
	if err := s.registry.Register(e); err != nil {
		return err
	}
	s.logger.Debug("method registered", middleware.F("method", e.Name))
	return nil
}
