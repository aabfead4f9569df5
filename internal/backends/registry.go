// Package backends holds the registry of candidate execution backends. The
// registry is read-mostly: registration happens during setup, routing and
// scoring only read.
package backends

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Registry stores backends by name and preserves registration order, which is
// the tie-break order for smart defaults and score ties.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]types.Backend
	order    []string
	logger   *logrus.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		backends: make(map[string]types.Backend),
		logger:   logger,
	}
}

// Register validates and stores a backend. Re-registering an existing name
// replaces the entry whole and keeps its original position in registration
// order; entries are never mutated in place.
func (r *Registry) Register(b types.Backend) error {
	if err := b.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name]; !exists {
		r.order = append(r.order, b.Name)
	}
	r.backends[b.Name] = b

	r.logger.WithFields(logrus.Fields{
		"backend":  b.Name,
		"locality": b.Locality,
	}).Debug("Registered backend")
	return nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (types.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	return b, ok
}

// List returns all backends in registration order.
func (r *Registry) List() []types.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Backend, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.backends[name])
	}
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FirstByLocality returns the first registered backend with the given
// locality class.
func (r *Registry) FirstByLocality(loc types.Locality) (types.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if b := r.backends[name]; b.Locality == loc {
			return b, true
		}
	}
	return types.Backend{}, false
}
