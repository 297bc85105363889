package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// MsgTimeout is the message of the error returned for calls that outlive
// their deadline.
const MsgTimeout = "Request timed out"

// TimeoutConfig configures TimeoutWith.
type TimeoutConfig struct {
	// Default bounds every method not listed in Methods. Zero means no
	// deadline.
	Default time.Duration

	// Methods sets per-method deadlines. A zero entry exempts the method.
	Methods map[string]time.Duration
}

func (c TimeoutConfig) enabled() bool {
	return c.Default > 0 || len(c.Methods) > 0
}

func (c TimeoutConfig) deadline(method string) time.Duration {
	if d, ok := c.Methods[method]; ok {
		return d
	}
	return c.Default
}

// Timeout returns middleware that gives every call the deadline d.
func Timeout(d time.Duration) Middleware {
	return TimeoutWith(TimeoutConfig{Default: d})
}

// TimeoutWith returns middleware that gives calls a deadline. Methods
// observe it through their context and asynchronous methods stop being
// awaited once it passes. A call that fails after its deadline passed
// fails with CodeTimeout, whatever error the method returned.
//
// rpc.discover never gets a deadline.
func TimeoutWith(cfg TimeoutConfig) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			d := cfg.deadline(req.Method)
			if d <= 0 || req.Method == protocol.MethodDiscover {
				return next(ctx, req)
			}

			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			resp, err := next(ctx, req)
			if err != nil && ctx.Err() == context.DeadlineExceeded {
				return nil, protocol.NewServerError(protocol.CodeTimeout, MsgTimeout).
					WithData(map[string]any{"method": req.Method, "timeout": d.String()})
			}
			return resp, err
		}
	}
}
