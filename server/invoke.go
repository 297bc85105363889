package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// panicError carries a value recovered from a panicking method.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// invoke calls the handler of e. Asynchronous results are awaited.
func (s *Server) invoke(ctx context.Context, e *MethodEntry, params reflect.Value) (result any, err error) {
	in := make([]reflect.Value, 0, 2)
	if e.hasContext {
		in = append(in, reflect.ValueOf(ctx))
	}
	if e.paramsType != nil {
		if e.paramsPtr {
			in = append(in, params.Addr())
		} else {
			in = append(in, params)
		}
	}

	out, err := callRecovered(e.fn, in)
	if err != nil {
		return nil, err
	}

	if errv := out[len(out)-1]; !errv.IsNil() {
		return nil, errv.Interface().(error)
	}
	if len(out) == 1 {
		return nil, nil
	}

	if e.IsAsync {
		return out[0].Interface().(awaitable).awaitAny(ctx)
	}
	return out[0].Interface(), nil
}

func callRecovered(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn.Call(in), nil
}

// toError converts an error returned along the call path into a wire error.
// *protocol.Error values pass through unchanged.
func (s *Server) toError(err error, e *MethodEntry) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, security.ErrPermission) {
		return s.detail(protocol.NewPermissionError(), err, nil)
	}

	if e != nil {
		s.logger.Warn("method failed",
			middleware.F("method", e.Name),
			middleware.F("error", err.Error()),
		)
	}

	var stack []byte
	var pe *panicError
	if errors.As(err, &pe) {
		stack = pe.stack
	}
	return s.detail(protocol.NewServerError(s.errorCode, protocol.MsgServerError), err, stack)
}

// detail attaches error details to e in debug mode.
func (s *Server) detail(e *protocol.Error, cause error, stack []byte) *protocol.Error {
	if !s.debug || cause == nil {
		return e
	}
	data := map[string]any{
		"type":    errorTypeName(cause),
		"message": cause.Error(),
	}
	if stack != nil {
		data["stack"] = string(stack)
	}
	return e.WithData(data)
}

func errorTypeName(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		if inner, ok := pe.value.(error); ok {
			return fmt.Sprintf("%T", inner)
		}
		return "panic"
	}
	return fmt.Sprintf("%T", err)
}
