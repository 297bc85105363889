package protocol

import (
	"context"
	"maps"
)

type requestMetaKey struct{}

// RequestMeta is transport-level metadata for a payload, such as HTTP
// headers or the remote address. The server hands it to dependency providers
// and the security function as the caller value when none is set explicitly.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a context carrying meta.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the metadata attached to ctx, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// GetRequestMeta returns a single metadata value, or "" when absent.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}

// SetRequestMeta returns a context whose metadata has key set to value.
// The metadata already in ctx is copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := maps.Clone(RequestMetaFromContext(ctx))
	if meta == nil {
		meta = make(RequestMeta, 1)
	}
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
