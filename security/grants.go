package security

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrPermission is the sentinel for failed authorization. Dependency
// providers and security functions wrap it to signal a permission failure
// rather than an internal one.
var ErrPermission = errors.New("permission denied")

// Grants maps scheme names to the scopes a caller holds.
type Grants map[string][]string

// Has reports whether the grants contain scheme with every listed scope.
func (g Grants) Has(scheme string, scopes ...string) bool {
	held, ok := g[scheme]
	if !ok {
		return false
	}
	for _, s := range scopes {
		if !slices.Contains(held, s) {
			return false
		}
	}
	return true
}

// Requirement maps scheme names to the scopes a method requires.
type Requirement map[string][]string

// Policy selects how a multi-scheme requirement is satisfied.
type Policy int

const (
	// RequireAll requires every scheme of the requirement to be satisfied.
	RequireAll Policy = iota
	// RequireAny requires at least one scheme to be satisfied.
	RequireAny
)

func (p Policy) String() string {
	switch p {
	case RequireAll:
		return "all"
	case RequireAny:
		return "any"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "all" or "any".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "all":
		return RequireAll, nil
	case "any":
		return RequireAny, nil
	}
	return RequireAll, fmt.Errorf("unknown security policy %q", s)
}

// Authorize checks grants against req. An empty requirement always passes.
// The returned error wraps ErrPermission.
func Authorize(req Requirement, grants Grants, policy Policy) error {
	if len(req) == 0 {
		return nil
	}

	schemes := make([]string, 0, len(req))
	for name := range req {
		schemes = append(schemes, name)
	}
	sort.Strings(schemes)

	var missing []string
	for _, name := range schemes {
		if grants.Has(name, req[name]...) {
			if policy == RequireAny {
				return nil
			}
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: unsatisfied schemes %v", ErrPermission, missing)
}
