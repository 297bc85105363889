// Package middleware provides middleware for JSON-RPC calls.
//
// A middleware wraps the next handler of the chain. The server runs the
// chain once per call, so every element of a batch passes through it on
// its own, and notifications pass through it even though their response is
// discarded.
//
// # Basic Usage
//
//	srv := openrpc.NewServer(info,
//	    openrpc.WithMiddleware(
//	        middleware.Recover(),
//	        middleware.RequestID(),
//	        middleware.Logging(middleware.NewSlogLogger(slog.Default())),
//	    ),
//	)
//
// # Available Middleware
//
//   - Recover: converts panics raised in middleware into server errors
//   - RequestID: attaches a unique request ID to the context
//   - Timeout: enforces a per-call deadline
//   - Logging: logs method, duration and outcome
//   - RateLimit: token bucket limiting, globally, per method or per client
//   - SizeLimit: rejects oversized params
//   - Auth: authenticates the caller and attaches its security grants
//   - OTel: OpenTelemetry spans and metrics
//
// # Custom Middleware
//
//	func Audit(log Logger) middleware.Middleware {
//	    return func(next middleware.HandlerFunc) middleware.HandlerFunc {
//	        return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
//	            log.Info("call", middleware.F("method", req.Method))
//	            return next(ctx, req)
//	        }
//	    }
//	}
package middleware
