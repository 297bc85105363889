package middleware

import (
	"context"
	"net/textproto"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// Identity represents an authenticated caller.
type Identity struct {
	// ID is a unique identifier for the identity (e.g., user ID, API key ID).
	ID string
	// Name is a human-readable name for the identity.
	Name string
	// Grants are the security schemes and scopes the identity holds. When
	// set, Auth attaches them to the context, where they take precedence
	// over the server's security function.
	Grants security.Grants
	// Metadata contains additional identity information.
	Metadata map[string]any
}

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// ContextWithIdentity returns a new context with the identity attached.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// AuthOption configures the authentication middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	logger       Logger
	skipMethods  map[string]bool
	errorMessage string
	optional     bool
}

// WithAuthLogger sets the logger for auth events.
func WithAuthLogger(l Logger) AuthOption {
	return func(c *authConfig) {
		c.logger = l
	}
}

// WithAuthSkipMethods lists methods that need no authentication.
// rpc.discover is always skipped.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthErrorMessage sets the message of the permission error returned
// on failure.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(c *authConfig) {
		c.errorMessage = msg
	}
}

// WithAuthOptional lets calls without credentials through unauthenticated,
// leaving the decision to the methods' security requirements. Invalid
// credentials are still rejected.
func WithAuthOptional() AuthOption {
	return func(c *authConfig) {
		c.optional = true
	}
}

// Authenticator validates the credentials of a call. It returns nil, nil
// when the call carries no credentials it recognizes.
type Authenticator func(ctx context.Context, req *protocol.Request) (*Identity, error)

// Auth returns middleware that authenticates calls. Failures are reported
// as permission errors (-32099).
func Auth(authenticator Authenticator, opts ...AuthOption) Middleware {
	cfg := &authConfig{
		skipMethods:  map[string]bool{protocol.MethodDiscover: true},
		errorMessage: "Permission error",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	deny := func(req *protocol.Request, reason string, fields ...Field) error {
		if cfg.logger != nil {
			cfg.logger.Warn(reason, append([]Field{F("method", req.Method)}, fields...)...)
		}
		return protocol.NewServerError(protocol.CodePermission, cfg.errorMessage)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			identity, err := authenticator(ctx, req)
			if err != nil {
				return nil, deny(req, "authentication failed", F("error", err.Error()))
			}
			if identity == nil {
				if cfg.optional {
					return next(ctx, req)
				}
				return nil, deny(req, "authentication failed: no credentials")
			}

			if cfg.logger != nil {
				cfg.logger.Debug("authenticated",
					F("method", req.Method),
					F("identity", identity.ID),
				)
			}

			ctx = ContextWithIdentity(ctx, identity)
			if identity.Grants != nil {
				ctx = security.ContextWithGrants(ctx, identity.Grants)
			}
			return next(ctx, req)
		}
	}
}

// metaValue reads a request metadata entry under its given, canonical or
// lower-case spelling.
func metaValue(ctx context.Context, key string) string {
	for _, k := range []string{key, textproto.CanonicalMIMEHeaderKey(key), strings.ToLower(key)} {
		if v := protocol.GetRequestMeta(ctx, k); v != "" {
			return v
		}
	}
	return ""
}

// bearerToken extracts the token of an "Authorization: Bearer" entry.
func bearerToken(ctx context.Context) string {
	auth := metaValue(ctx, "Authorization")
	const prefix = "bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// APIKeyAuthenticator authenticates calls by the API key found in request
// metadata under headerName. keyValidator returns nil for unknown keys.
func APIKeyAuthenticator(headerName string, keyValidator func(key string) *Identity) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		key := metaValue(ctx, headerName)
		if key == "" {
			return nil, nil
		}
		return keyValidator(key), nil
	}
}

// BearerTokenAuthenticator authenticates calls by their bearer token.
// tokenValidator returns nil for unknown tokens.
func BearerTokenAuthenticator(tokenValidator func(token string) *Identity) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		token := bearerToken(ctx)
		if token == "" {
			return nil, nil
		}
		return tokenValidator(token), nil
	}
}

// OIDCAuthenticator verifies bearer tokens with verifier and grants their
// scopes under scheme.
//
//	provider, _ := oidc.NewProvider(ctx, "https://issuer.example.com")
//	authn := middleware.OIDCAuthenticator(provider.Verifier(&oidc.Config{ClientID: "api"}), "bearer")
func OIDCAuthenticator(verifier *oidc.IDTokenVerifier, scheme string) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		raw := bearerToken(ctx)
		if raw == "" {
			return nil, nil
		}
		tok, err := security.VerifyToken(ctx, verifier, raw)
		if err != nil {
			return nil, err
		}
		return &Identity{
			ID:     tok.Subject,
			Grants: security.Grants{scheme: tok.Scopes},
		}, nil
	}
}

// StaticAPIKeys creates a key validator from a map of key to identity.
func StaticAPIKeys(keys map[string]*Identity) func(string) *Identity {
	return func(key string) *Identity {
		return keys[key]
	}
}

// StaticTokens creates a token validator from a map of token to identity.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}

// ChainAuthenticators tries authenticators in order and returns the first
// identity found. An error stops the chain.
func ChainAuthenticators(authenticators ...Authenticator) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		for _, auth := range authenticators {
			identity, err := auth(ctx, req)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				return identity, nil
			}
		}
		return nil, nil
	}
}
