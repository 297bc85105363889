package server

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Dispatch processes one JSON-RPC payload and returns the serialized
// response. It returns nil when nothing must be sent back, which is the
// case for notifications and batches made only of notifications.
//
// Dispatch is safe for concurrent use. Batch elements run concurrently and
// their responses keep the order of the requests.
func (s *Server) Dispatch(ctx context.Context, payload []byte) []byte {
	s.Freeze()

	p, perr := protocol.Decode(payload)
	if perr != nil {
		s.logger.Debug("rejected payload",
			middleware.F("code", perr.Code),
			middleware.F("error", perr.Message),
		)
		return s.encode([]*protocol.Response{protocol.NewErrorResponse(nil, perr)}, false)
	}

	responses := make([]*protocol.Response, len(p.Messages))
	if len(p.Messages) == 1 {
		responses[0] = s.handleMessage(ctx, p.Messages[0])
	} else {
		var g errgroup.Group
		if s.batchLimit > 0 {
			g.SetLimit(s.batchLimit)
		}
		for i, m := range p.Messages {
			g.Go(func() error {
				responses[i] = s.handleMessage(ctx, m)
				return nil
			})
		}
		_ = g.Wait()
	}

	out := responses[:0]
	for _, r := range responses {
		if r != nil {
			out = append(out, r)
		}
	}
	return s.encode(out, p.Batch)
}

// DispatchRequest runs a single request through the middleware chain. The
// request is checked like a decoded one; invalid requests are answered with
// Invalid Request. It returns nil for notifications.
func (s *Server) DispatchRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	s.Freeze()
	return s.handleMessage(ctx, protocol.ClassifyRequest(req))
}

func (s *Server) encode(responses []*protocol.Response, batch bool) []byte {
	data, err := protocol.EncodeResponses(responses, batch)
	if err != nil {
		s.logger.Error("encode responses", middleware.F("error", err.Error()))
		fallback := protocol.NewErrorResponse(nil, protocol.NewInternalError(protocol.MsgInternalError))
		data, _ = json.Marshal(fallback)
	}
	return data
}

func (s *Server) handleMessage(ctx context.Context, m protocol.Message) *protocol.Response {
	if m.Err != nil {
		if m.Notification {
			return nil
		}
		return protocol.NewErrorResponse(m.ID, m.Err)
	}

	req := m.Request
	resp, err := s.runChain(ctx, req)
	if m.Notification {
		if err != nil {
			s.logger.Debug("notification failed",
				middleware.F("method", req.Method),
				middleware.F("error", err.Error()),
			)
		}
		return nil
	}

	if err != nil {
		return protocol.NewErrorResponse(req.ID, s.toError(err, nil))
	}
	if resp == nil {
		return protocol.NewResponse(req.ID, nil)
	}
	return resp
}

// runChain runs the middleware chain, turning a panic raised by middleware
// into a server error.
func (s *Server) runChain(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
			s.logger.Error("middleware panicked",
				middleware.F("method", req.Method),
				middleware.F("panic", r),
			)
		}
	}()
	return s.handler(ctx, req)
}

// call is the innermost handler of the middleware chain.
func (s *Server) call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	entry, ok := s.registry.Lookup(req.Method)
	if !ok {
		return nil, protocol.NewMethodNotFound(protocol.MsgMethodNotFound).WithData(req.Method)
	}

	sc := newScope(CallerFromContext(ctx))
	ctx = withScope(ctx, sc)

	if err := s.authorize(ctx, entry, sc); err != nil {
		return nil, err
	}

	args, perr := s.bind(entry, req.Params)
	if perr != nil {
		return nil, perr
	}

	if perr := s.resolveDependencies(ctx, entry, args, sc); perr != nil {
		return nil, perr
	}

	result, err := s.invoke(ctx, entry, args)
	if err != nil {
		var pe *panicError
		if errors.As(err, &pe) {
			s.logger.Error("method panicked",
				middleware.F("method", entry.Name),
				middleware.F("panic", pe.value),
				middleware.F("stack", string(pe.stack)),
			)
		}
		return nil, s.toError(err, entry)
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encode result",
			middleware.F("method", entry.Name),
			middleware.F("error", err.Error()),
		)
		return nil, s.detail(protocol.NewInternalError(protocol.MsgInternalError), err, nil)
	}
	return protocol.NewResponse(req.ID, json.RawMessage(data)), nil
}
