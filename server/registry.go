package server

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Registry stores method entries by name. It accepts registrations until it
// is frozen, after which lookups proceed without locking.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*MethodEntry
	order   []*MethodEntry
	frozen  atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*MethodEntry)}
}

// Register adds e. It fails with ErrReservedName for rpc.discover, with
// ErrDuplicateMethod when the name is taken and with ErrRegistryFrozen once
// the registry has been frozen.
func (r *Registry) Register(e *MethodEntry) error {
	return r.RegisterAll([]*MethodEntry{e})
}

// RegisterAll adds every entry or none of them.
func (r *Registry) RegisterAll(entries []*MethodEntry) error {
	for _, e := range entries {
		if err := checkName(e); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() && len(entries) > 0 {
		return fmt.Errorf("register %q: %w", entries[0].Name, ErrRegistryFrozen)
	}
	pending := make(map[string]bool, len(entries))
	for _, e := range entries {
		if _, exists := r.entries[e.Name]; exists || pending[e.Name] {
			return fmt.Errorf("register: %w", &DuplicateMethodError{Name: e.Name})
		}
		pending[e.Name] = true
	}
	for _, e := range entries {
		r.entries[e.Name] = e
		r.order = append(r.order, e)
	}
	return nil
}

func checkName(e *MethodEntry) error {
	if e.Name == protocol.MethodDiscover && !e.builtin {
		return fmt.Errorf("register %q: %w", e.Name, ErrReservedName)
	}
	if e.Name == "" {
		return invalidHandler("method name is empty")
	}
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*MethodEntry, bool) {
	if r.frozen.Load() {
		e, ok := r.entries[name]
		return e, ok
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// Methods returns the registered entries in registration order, excluding
// built-in methods.
func (r *Registry) Methods() []*MethodEntry {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]*MethodEntry, 0, len(r.order))
	for _, e := range r.order {
		if !e.builtin {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries, including built-in methods.
func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return len(r.order)
}

// Freeze stops further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}
