package strategy

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotConfigured is returned by Resolve for an unknown strategy id.
var ErrNotConfigured = errors.New("strategy not configured")

// Factory builds a strategy. It fails when the strategy is configured but
// cannot run, for example because an API key is missing.
type Factory func() (Strategy, error)

// Registry maps strategy ids to factories and caches built instances.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	order     []string
	built     map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		built:     make(map[string]Strategy),
	}
}

// Register adds or replaces a factory.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[id]; !ok {
		r.order = append(r.order, id)
	}
	r.factories[id] = f
	delete(r.built, id)
}

// RegisterStrategy registers an already built strategy under its name.
func (r *Registry) RegisterStrategy(s Strategy) {
	r.Register(s.Name(), func() (Strategy, error) { return s, nil })
}

// Resolve returns the strategy for id, building it on first use.
func (r *Registry) Resolve(id string) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(id)
}

func (r *Registry) resolveLocked(id string) (Strategy, error) {
	if s, ok := r.built[id]; ok {
		return s, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, id)
	}
	s, err := f()
	if err != nil {
		return nil, fmt.Errorf("build strategy %q: %w", id, err)
	}
	if s == nil {
		return nil, fmt.Errorf("build strategy %q: factory returned nil", id)
	}
	r.built[id] = s
	return s, nil
}

// Configured lists every registered id in registration order.
func (r *Registry) Configured() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Available lists the ids whose strategies can be built.
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, id := range r.order {
		if _, err := r.resolveLocked(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
