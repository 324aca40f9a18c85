package sync

import (
	"fmt"
	"sync"
)

// TableSpec binds one logical table to its remote tab and payload schema.
// Each table the engine manages (bookings per property, tasks, channel
// lists) is one registration, not a copy of the sync code.
type TableSpec struct {
	Name   string
	Tab    string
	Schema []string
}

// Registry holds the registered tables.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]TableSpec
	order []string
}

// NewRegistry creates an empty table registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]TableSpec)}
}

// Register adds or replaces a table registration.
func (r *Registry) Register(spec TableSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
}

// Get returns the spec for a table name.
func (r *Registry) Get(name string) (TableSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("table %q is not registered", name)
	}
	return spec, nil
}

// All returns every registered spec in registration order.
func (r *Registry) All() []TableSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]TableSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.specs[name])
	}
	return specs
}
