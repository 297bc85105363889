package server

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// authorize checks the caller's grants against the method's requirement.
// The target method is never invoked when it fails.
func (s *Server) authorize(ctx context.Context, e *MethodEntry, sc *scope) *protocol.Error {
	if len(s.schemes) == 0 || len(e.Security) == 0 {
		return nil
	}

	grants, err := s.grants(ctx, sc)
	if err != nil {
		var rpcErr *protocol.Error
		switch {
		case errors.As(err, &rpcErr):
			return rpcErr
		case errors.Is(err, security.ErrPermission):
			return s.detail(protocol.NewPermissionError(), err, nil)
		default:
			s.logger.Error("security function failed",
				middleware.F("method", e.Name),
				middleware.F("error", err.Error()),
			)
			return s.detail(protocol.NewInternalError(protocol.MsgInternalError), err, nil)
		}
	}

	if err := security.Authorize(e.Security, grants, s.policy); err != nil {
		s.logger.Debug("permission denied",
			middleware.F("method", e.Name),
			middleware.F("error", err.Error()),
		)
		return s.detail(protocol.NewPermissionError(), err, nil)
	}
	return nil
}

// grants returns grants attached by the transport, or asks the security
// function.
func (s *Server) grants(ctx context.Context, sc *scope) (security.Grants, error) {
	if g, ok := security.GrantsFromContext(ctx); ok {
		return g, nil
	}
	if s.securityFn == nil {
		return nil, nil
	}
	return s.securityFn(ctx, sc.caller)
}
