package transport

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the HTTP endpoint.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call the endpoint. A single
	// "*" allows every origin.
	AllowOrigins []string

	// AllowMethods defaults to POST and OPTIONS.
	AllowMethods []string

	// AllowHeaders defaults to Content-Type, Authorization, X-API-Key and
	// X-Request-ID, the headers turned into request metadata.
	AllowHeaders []string

	ExposeHeaders    []string
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default: 86400.
	MaxAge int
}

const defaultCORSMaxAge = 86400

var (
	defaultCORSMethods = []string{http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}
)

// DefaultCORSConfig allows every origin. Intended for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: defaultCORSMethods,
		AllowHeaders: defaultCORSHeaders,
		MaxAge:       defaultCORSMaxAge,
	}
}

// corsPolicy holds the header values computed once from a CORSConfig.
type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

func newCORSPolicy(c CORSConfig) *corsPolicy {
	p := &corsPolicy{
		anyOrigin:   slices.Equal(c.AllowOrigins, []string{"*"}),
		origins:     make(map[string]struct{}, len(c.AllowOrigins)),
		methods:     strings.Join(orDefault(c.AllowMethods, defaultCORSMethods), ", "),
		headers:     strings.Join(orDefault(c.AllowHeaders, defaultCORSHeaders), ", "),
		expose:      strings.Join(c.ExposeHeaders, ", "),
		credentials: c.AllowCredentials,
	}
	for _, o := range c.AllowOrigins {
		p.origins[o] = struct{}{}
	}
	switch {
	case c.MaxAge == 0:
		p.maxAge = strconv.Itoa(defaultCORSMaxAge)
	case c.MaxAge > 0:
		p.maxAge = strconv.Itoa(c.MaxAge)
	}
	return p
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin {
		return "*"
	}
	if _, ok := p.origins[origin]; ok && origin != "" {
		return origin
	}
	return ""
}

// apply sets the CORS response headers and reports whether r was a
// preflight request that has been answered.
func (p *corsPolicy) apply(w http.ResponseWriter, r *http.Request) bool {
	allow := p.allowOrigin(r.Header.Get("Origin"))
	if allow == "" {
		return false
	}

	h := w.Header()
	if allow != "*" {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Origin", allow)
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if r.Method != http.MethodOptions {
		if p.expose != "" {
			h.Set("Access-Control-Expose-Headers", p.expose)
		}
		return false
	}

	h.Set("Access-Control-Allow-Methods", p.methods)
	h.Set("Access-Control-Allow-Headers", p.headers)
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
	w.WriteHeader(http.StatusNoContent)
	return true
}

// CORSHandler wraps next with CORS headers. Preflight requests from allowed
// origins are answered directly with 204.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	policy := newCORSPolicy(config)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.apply(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithCORS enables CORS on the HTTP transport.
func WithCORS(config CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}

// WithDefaultCORS enables CORS for every origin.
func WithDefaultCORS() HTTPOption {
	return WithCORS(DefaultCORSConfig())
}
