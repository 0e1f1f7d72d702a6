package provider

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps model-name prefixes to transports. It is injected at
// construction time so independent agent instances never share state.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	backends map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Provider),
	}
}

// Register binds a model-name prefix (e.g. "gpt", "claude") to a transport.
// Registration order determines the fallback transport.
func (r *Registry) Register(prefix string, p Provider) error {
	if prefix == "" {
		return fmt.Errorf("prefix cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[prefix]; exists {
		return fmt.Errorf("prefix already registered: %s", prefix)
	}

	r.order = append(r.order, prefix)
	r.backends[prefix] = p
	return nil
}

// Resolve returns the transport whose registered prefix matches the model
// name, falling back to the first registered transport.
func (r *Registry) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, fmt.Errorf("no providers registered")
	}

	for _, prefix := range r.order {
		if strings.HasPrefix(model, prefix) {
			return r.backends[prefix], nil
		}
	}

	return r.backends[r.order[0]], nil
}

// Prefixes returns the registered prefixes in registration order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
