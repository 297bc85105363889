// Package security holds the declarative access model of an RPC server:
// security schemes advertised in discovery, the grants a caller holds and
// the per-method requirements checked against them.
//
// A method declares a Requirement, a mapping of scheme name to the scopes it
// needs. For each call the server obtains the caller's Grants, either from the
// context (see ContextWithGrants, typically set by transport or middleware) or
// from the server's security function, and calls Authorize:
//
//	req := security.Requirement{"bearer": {"orders:write"}}
//	err := security.Authorize(req, security.Grants{"bearer": {"orders:read"}}, security.RequireAll)
//	// errors.Is(err, security.ErrPermission) == true
//
// Schemes carry no runtime behavior; they only describe to clients how
// credentials are presented. TokenGrants bridges OpenID Connect bearer tokens
// to Grants.
package security
