package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

const instrumentationName = "github.com/felixgeelhaar/openrpc-go"

// Attribute keys follow the OpenTelemetry RPC semantic conventions.
const (
	attrSystem    = "rpc.system"
	attrService   = "rpc.service"
	attrMethod    = "rpc.method"
	attrErrorCode = "rpc.jsonrpc.error_code"
	attrRequestID = "rpc.jsonrpc.request_id"
	attrVersion   = "rpc.jsonrpc.version"
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the rpc.service attribute.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods specifies methods that are not traced.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that starts a server span per call and records
// call counts, latency and errors.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "openrpc-server",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion("1.0.0"),
	)
	meter := cfg.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion("1.0.0"),
	)

	callCounter, _ := meter.Int64Counter(
		"rpc.server.calls",
		metric.WithDescription("Number of JSON-RPC calls"),
		metric.WithUnit("{call}"),
	)
	callDuration, _ := meter.Float64Histogram(
		"rpc.server.duration",
		metric.WithDescription("Duration of JSON-RPC calls"),
		metric.WithUnit("ms"),
	)
	errorCounter, _ := meter.Int64Counter(
		"rpc.server.errors",
		metric.WithDescription("Number of failed JSON-RPC calls"),
		metric.WithUnit("{error}"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			attrs := []attribute.KeyValue{
				attribute.String(attrSystem, "jsonrpc"),
				attribute.String(attrService, cfg.serviceName),
				attribute.String(attrMethod, req.Method),
			}

			ctx, span := tracer.Start(ctx, req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithAttributes(attribute.String(attrVersion, protocol.JSONRPCVersion)),
			)
			defer span.End()

			if !req.IsNotification() {
				span.SetAttributes(attribute.String(attrRequestID, string(req.ID)))
			}
			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attribute.String("request.id", reqID))
			}

			start := time.Now()
			callCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

			resp, err := next(ctx, req)

			callDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))

			code, failed := errorCode(resp, err)
			if !failed {
				span.SetStatus(codes.Ok, "")
				return resp, err
			}

			if err != nil {
				span.RecordError(err)
			}
			span.SetStatus(codes.Error, errorMessage(resp, err))
			errAttrs := attrs
			if code != 0 {
				span.SetAttributes(attribute.Int(attrErrorCode, code))
				errAttrs = append(errAttrs, attribute.Int(attrErrorCode, code))
			}
			errorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))

			return resp, err
		}
	}
}

func errorCode(resp *protocol.Response, err error) (int, bool) {
	if err != nil {
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return rpcErr.Code, true
		}
		return 0, true
	}
	if resp != nil && resp.Error != nil {
		return resp.Error.Code, true
	}
	return 0, false
}

func errorMessage(resp *protocol.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return resp.Error.Message
}

// SpanFromContext returns the current span, or a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanAttribute sets an attribute on the current span. Unsupported value
// types are ignored.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	case []string:
		span.SetAttributes(attribute.StringSlice(key, v))
	}
}
