package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

// KeyFunc extracts the bucket key of a call.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

type rateLimitConfig struct {
	keyFunc KeyFunc
	logger  Logger
}

// WithRateLimitKeyFunc sets the function that selects the bucket of a call.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns middleware that limits calls with a token bucket
// refilled at rate tokens per second, holding at most burst tokens. Calls
// over the limit fail with code -32003.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, *protocol.Request) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			key := cfg.keyFunc(ctx, req)

			if !limiter.Allow(ctx, key) {
				if cfg.logger != nil {
					cfg.logger.Warn("rate limit exceeded",
						F("method", req.Method),
						F("key", key),
					)
				}
				return nil, protocol.NewServerError(protocol.CodeRateLimited, "Rate limit exceeded")
			}

			return next(ctx, req)
		}
	}
}

// RateLimitByMethod keeps one bucket per method.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	byMethod := WithRateLimitKeyFunc(func(_ context.Context, req *protocol.Request) string {
		return req.Method
	})
	return RateLimit(rate, burst, append([]RateLimitOption{byMethod}, opts...)...)
}

// RateLimitByClient keeps one bucket per client as identified by clientID.
func RateLimitByClient(rate int, burst int, clientID KeyFunc, opts ...RateLimitOption) Middleware {
	return RateLimit(rate, burst, append([]RateLimitOption{WithRateLimitKeyFunc(clientID)}, opts...)...)
}

// MetaKey returns a KeyFunc reading a request metadata entry, such as a
// header forwarded by the HTTP transport. Calls without it share one bucket.
func MetaKey(key string) KeyFunc {
	return func(ctx context.Context, _ *protocol.Request) string {
		return protocol.GetRequestMeta(ctx, key)
	}
}
