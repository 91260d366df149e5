package plugin

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry is an insertion-ordered collection of live plugins. Iteration
// order is registration order and is stable across runs.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a plugin. The same instance or UUID cannot be added twice.
func (r *Registry) Add(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", ErrInvalidPlugin)
	}
	info := p.Info()
	if err := info.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Info().ID == info.ID {
			return fmt.Errorf("plugin %q: %w", info.Name, ErrDuplicatePlugin)
		}
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// All returns the plugins in registration order. The slice is a copy.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ByID returns the plugin with the given UUID.
func (r *Registry) ByID(id uuid.UUID) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Info().ID == id {
			return p, true
		}
	}
	return nil, false
}

// ByName returns the first plugin with the given name.
func (r *Registry) ByName(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Info().Name == name {
			return p, true
		}
	}
	return nil, false
}

// Find returns the first plugin whose concrete type is T.
func Find[T Plugin](r *Registry) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if t, ok := p.(T); ok {
			return t, true
		}
	}
	return zero, false
}
