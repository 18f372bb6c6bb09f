package registry

import (
	"fmt"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Registry manages the step functions of a workflow.
// Registration order is kept so that schema generation stays deterministic.
type Registry struct {
	mu    sync.RWMutex
	order []string
	funcs map[string]domain.NodeFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]domain.NodeFunc),
	}
}

// Register adds a step function to the registry.
// If a function with the same name exists, it is overwritten in place.
func (r *Registry) Register(name string, fn domain.NodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (domain.NodeFunc, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no function registered for %q", domain.ErrDispatch, name)
	}
	return fn, nil
}

// Names lists registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Map returns a snapshot of the registry as a plain map.
func (r *Registry) Map() map[string]domain.NodeFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.NodeFunc, len(r.funcs))
	for k, v := range r.funcs {
		out[k] = v
	}
	return out
}
