package security

import "context"

type grantsKey struct{}

// ContextWithGrants attaches grants established outside the server, for
// example by a transport that authenticated the connection. They take
// precedence over the server's security function.
func ContextWithGrants(ctx context.Context, g Grants) context.Context {
	return context.WithValue(ctx, grantsKey{}, g)
}

// GrantsFromContext returns the grants attached to ctx, if any.
func GrantsFromContext(ctx context.Context) (Grants, bool) {
	g, ok := ctx.Value(grantsKey{}).(Grants)
	return g, ok
}
