package middleware

import "time"

// StackConfig selects the optional parts of a middleware stack.
type StackConfig struct {
	Timeout TimeoutConfig
}

// NewStack returns panic recovery logged to logger, request IDs, the
// configured call deadlines and request logging, in that order.
func NewStack(logger Logger, cfg StackConfig) []Middleware {
	stack := []Middleware{
		RecoverWithLogger(logger),
		RequestID(),
	}
	if cfg.Timeout.enabled() {
		stack = append(stack, TimeoutWith(cfg.Timeout))
	}
	return append(stack, Logging(logger))
}

// DefaultStack is NewStack without deadlines.
func DefaultStack(logger Logger) []Middleware {
	return NewStack(logger, StackConfig{})
}

// DefaultStackWithTimeout is NewStack with one deadline for every method.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return NewStack(logger, StackConfig{Timeout: TimeoutConfig{Default: timeout}})
}
