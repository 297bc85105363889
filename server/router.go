package server

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Router collects methods that are later included into a Server, usually
// under a common prefix.
//
//	math := server.NewRouter()
//	math.Method("add").Handler(add)
//	srv.Include(math, "math.")  // registers "math.add"
type Router struct {
	mu      sync.Mutex
	entries []*MethodEntry
	names   map[string]bool
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{names: make(map[string]bool)}
}

// Method starts building a method on the router.
func (r *Router) Method(name string) *MethodBuilder {
	return newMethodBuilder(r, name)
}

// Register registers fn under name with default settings.
func (r *Router) Register(name string, fn any) error {
	return r.Method(name).Handler(fn)
}

// Include copies the methods of sub into r with prefix prepended. On error
// nothing is copied.
func (r *Router) Include(sub *Router, prefix string, opts ...IncludeOption) error {
	cfg := includeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return r.registerAll(prefixed(sub.snapshot(), prefix, cfg.tags))
}

func (r *Router) register(e *MethodEntry) error {
	return r.registerAll([]*MethodEntry{e})
}

// registerAll adds every entry or none of them.
func (r *Router) registerAll(entries []*MethodEntry) error {
	for _, e := range entries {
		if e.Name == protocol.MethodDiscover {
			return fmt.Errorf("register %q: %w", e.Name, ErrReservedName)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make(map[string]bool, len(entries))
	for _, e := range entries {
		if r.names[e.Name] || pending[e.Name] {
			return fmt.Errorf("register: %w", &DuplicateMethodError{Name: e.Name})
		}
		pending[e.Name] = true
	}
	for _, e := range entries {
		r.names[e.Name] = true
		r.entries = append(r.entries, e)
	}
	return nil
}

// prefixed returns copies of entries renamed with prefix and extra tags.
func prefixed(entries []*MethodEntry, prefix string, tags []string) []*MethodEntry {
	out := make([]*MethodEntry, len(entries))
	for i, e := range entries {
		out[i] = e.withName(prefix+e.Name, tags)
	}
	return out
}

func (r *Router) snapshot() []*MethodEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MethodEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// IncludeOption configures Include.
type IncludeOption func(*includeConfig)

type includeConfig struct {
	tags []string
}

// WithTags appends tags to every included method.
func WithTags(tags ...string) IncludeOption {
	return func(c *includeConfig) {
		c.tags = append(c.tags, tags...)
	}
}
