package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// ErrDependencyCycle is returned when providers depend on each other.
var ErrDependencyCycle = errors.New("dependency cycle")

// ErrMissingDependency is returned when a named dependency is not present
// in the caller value.
var ErrMissingDependency = errors.New("missing dependency")

// Provider produces a dependency value from the caller value supplied by
// the transport. Providers may resolve other providers with Resolve; within
// one call each provider runs at most once and its result is shared by the
// security function and the method.
type Provider struct {
	name string
	typ  reflect.Type
	fn   func(ctx context.Context, caller any) (any, error)
}

// Provide wraps fn as a Provider.
//
//	var currentUser = server.Provide(func(ctx context.Context, caller any) (*User, error) {
//	    meta, _ := caller.(protocol.RequestMeta)
//	    return users.ByToken(meta["Authorization"])
//	})
func Provide[T any](fn func(ctx context.Context, caller any) (T, error)) *Provider {
	t := reflect.TypeFor[T]()
	return &Provider{
		name: t.String(),
		typ:  t,
		fn: func(ctx context.Context, caller any) (any, error) {
			return fn(ctx, caller)
		},
	}
}

// Named sets the name used for the provider in errors.
func (p *Provider) Named(name string) *Provider {
	p.name = name
	return p
}

// Type returns the type of value the provider produces.
func (p *Provider) Type() reflect.Type {
	return p.typ
}

// Resolve runs p, or returns its memoized result when it already ran within
// the current call.
func Resolve[T any](ctx context.Context, p *Provider) (T, error) {
	var zero T
	v, err := resolve(ctx, p)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("provider %s: produced %T, not %s", p.name, v, reflect.TypeFor[T]())
	}
	return t, nil
}

type scopeKey struct{}

// scope memoizes provider results for one top-level call.
type scope struct {
	caller any

	mu      sync.Mutex
	results map[*Provider]*result
}

// result is filled by exactly one run of its provider. Concurrent resolvers
// of the same provider wait on once.
type result struct {
	once  sync.Once
	value any
	err   error
}

func newScope(caller any) *scope {
	return &scope{caller: caller, results: make(map[*Provider]*result)}
}

func (s *scope) resultFor(p *Provider) *result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[p]
	if !ok {
		r = &result{}
		s.results[p] = r
	}
	return r
}

func withScope(ctx context.Context, s *scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// resolving is the chain of providers being resolved on this context.
type resolvingKey struct{}

type resolvingChain struct {
	p    *Provider
	next *resolvingChain
}

func resolve(ctx context.Context, p *Provider) (any, error) {
	if p == nil {
		return nil, fmt.Errorf("nil provider")
	}

	chain, _ := ctx.Value(resolvingKey{}).(*resolvingChain)
	for c := chain; c != nil; c = c.next {
		if c.p == p {
			return nil, fmt.Errorf("provider %s: %w", p.name, ErrDependencyCycle)
		}
	}
	ctx = context.WithValue(ctx, resolvingKey{}, &resolvingChain{p: p, next: chain})

	s := scopeFrom(ctx)
	if s == nil {
		return p.fn(ctx, nil)
	}

	r := s.resultFor(p)
	r.once.Do(func() {
		defer func() {
			if v := recover(); v != nil {
				r.err = &panicError{value: v, stack: debug.Stack()}
			}
		}()
		r.value, r.err = p.fn(ctx, s.caller)
	})
	return r.value, r.err
}

// lookupCaller reads name from a caller value that is a map with string keys.
func lookupCaller(caller any, name string) (any, bool) {
	if caller == nil {
		return nil, false
	}
	v := reflect.ValueOf(caller)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	val := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
	if !val.IsValid() {
		return nil, false
	}
	return val.Interface(), true
}

// assign converts a dependency value to the parameter's type.
func assign(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind():
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// resolveDependencies fills the dependency fields of args.
func (s *Server) resolveDependencies(ctx context.Context, e *MethodEntry, args reflect.Value, sc *scope) *protocol.Error {
	for _, spec := range e.Depends {
		var v any
		var err error
		if spec.Provider != nil {
			v, err = resolve(ctx, spec.Provider)
		} else if found, ok := lookupCaller(sc.caller, spec.Name); ok {
			v = found
		} else {
			err = fmt.Errorf("%w: %q", ErrMissingDependency, spec.Name)
		}

		if err == nil {
			var rv reflect.Value
			if rv, err = assign(v, spec.Type); err == nil {
				args.FieldByIndex(spec.field.Index).Set(rv)
				continue
			}
		}

		var rpcErr *protocol.Error
		switch {
		case errors.As(err, &rpcErr):
			return rpcErr
		case errors.Is(err, security.ErrPermission):
			return s.detail(protocol.NewPermissionError(), err, nil)
		}
		s.logger.Error("dependency resolution failed",
			middleware.F("method", e.Name),
			middleware.F("param", spec.Name),
			middleware.F("error", err.Error()),
		)
		return s.detail(protocol.NewInternalError(protocol.MsgInternalError), err, nil)
	}
	return nil
}
