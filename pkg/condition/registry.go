package condition

import (
	"fmt"
	"maps"
	"sync"
)

// LeafSpec describes a registered leaf kind. Build validates params and
// returns the check; invalid params fail at load time, never at
// evaluation time.
type LeafSpec struct {
	Build             func(params map[string]any) (CheckFunc, error)
	DefaultCost       int
	HasDefaultCost    bool
	Deterministic     bool
	DefaultLikelihood float64
	HasLikelihood     bool
}

// Registry maps leaf kinds to their constructors. Registration is explicit
// and happens at startup, keeping load order deterministic. A Registry is
// safe for concurrent reads after setup.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]LeafSpec
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]LeafSpec)}
}

// Register adds a leaf kind. Composite kinds and duplicates are rejected.
func (r *Registry) Register(kind string, spec LeafSpec) error {
	if kind == "" {
		return fmt.Errorf("leaf kind must not be empty")
	}
	if kind == KindAnd || kind == KindOr || kind == KindNot {
		return fmt.Errorf("leaf kind %q is reserved for composites", kind)
	}
	if spec.Build == nil {
		return fmt.Errorf("leaf kind %q has no build function", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[kind]; exists {
		return fmt.Errorf("leaf kind %q already registered", kind)
	}
	r.specs[kind] = spec
	return nil
}

// Deterministic reports whether a kind's result is a pure function of the
// context. Unknown kinds are treated as non-deterministic so they can never
// be cached.
func (r *Registry) Deterministic(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[kind]
	return ok && spec.Deterministic
}

// Kinds returns the registered kind names.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.specs))
	for k := range r.specs {
		kinds = append(kinds, k)
	}
	return kinds
}

// NewLeaf builds a leaf of the given kind. A nil cost uses the kind's
// default; a nil likelihood uses the kind's declared default, if any.
func (r *Registry) NewLeaf(kind string, params map[string]any, cost *int, likelihood *float64) (*Leaf, error) {
	r.mu.RLock()
	spec, ok := r.specs[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown leaf kind %q", kind)
	}

	check, err := spec.Build(params)
	if err != nil {
		return nil, fmt.Errorf("leaf kind %q: %w", kind, err)
	}

	// A zero DefaultCost counts as unset unless HasDefaultCost is set;
	// cost 0 is a valid declared default.
	defaultCost := spec.DefaultCost
	if defaultCost == 0 && !spec.HasDefaultCost {
		defaultCost = DefaultCost
	}

	leaf := &Leaf{
		kind:          kind,
		cost:          defaultCost,
		likelihood:    spec.DefaultLikelihood,
		hasLikelihood: spec.HasLikelihood,
		deterministic: spec.Deterministic,
		check:         check,
	}
	if len(params) > 0 {
		leaf.params = maps.Clone(params)
	}
	if cost != nil {
		if err := validateCost(*cost); err != nil {
			return nil, fmt.Errorf("leaf kind %q: %w", kind, err)
		}
		leaf.cost = *cost
	}
	if likelihood != nil {
		if *likelihood < 0 || *likelihood > 1 {
			return nil, fmt.Errorf("leaf kind %q: likelihood %v out of range [0,1]", kind, *likelihood)
		}
		leaf.likelihood = *likelihood
		leaf.hasLikelihood = true
	}
	return leaf, nil
}
