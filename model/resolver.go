package model

import (
	"fmt"
	"sync"
)

// Resolver maps provider names to Model implementations so agent records
// can reference models by name ("openai", "anthropic", "mock") without the
// registry knowing vendor SDKs.
type Resolver struct {
	mu       sync.RWMutex
	models   map[string]Model
	fallback Model
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{models: map[string]Model{}}
}

// Register makes a model available under the given provider name,
// replacing any previous registration.
func (r *Resolver) Register(provider string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[provider] = m
}

// SetFallback sets the model used when a provider name is not registered.
func (r *Resolver) SetFallback(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = m
}

// Resolve returns the model for a provider name, falling back to the
// default when unset. An error is returned only when nothing matches.
func (r *Resolver) Resolve(provider string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[provider]; ok {
		return m, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no model registered for provider %q", provider)
}

// Providers lists registered provider names in unspecified order.
func (r *Resolver) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	return out
}
