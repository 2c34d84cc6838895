package interrogator

import (
	"errors"
	"fmt"
	"sync"
)

// Registry is the process-wide table of named interrogators.
type Registry interface {
	Lookup(name string) (Interrogator, bool)
	// Names lists models in registration order.
	Names() []string
	// EnsureLoaded populates the table if it is still empty.
	EnsureLoaded() error
}

// Discoverer finds the interrogators available to the process.
type Discoverer func() ([]Interrogator, error)

type ModelRegistry struct {
	discover Discoverer

	mu      sync.RWMutex
	names   []string
	entries map[string]Interrogator
}

var _ Registry = (*ModelRegistry)(nil)

func NewRegistry(discover Discoverer) *ModelRegistry {
	return &ModelRegistry{
		discover: discover,
		entries:  make(map[string]Interrogator),
	}
}

func (r *ModelRegistry) Lookup(name string) (Interrogator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.entries[name]
	return it, ok
}

func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

func (r *ModelRegistry) EnsureLoaded() error {
	r.mu.RLock()
	filled := len(r.names) > 0
	r.mu.RUnlock()
	if filled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.names) > 0 || r.discover == nil {
		return nil
	}
	found, err := r.discover()
	if err != nil {
		return fmt.Errorf("failed to discover interrogators: %w", err)
	}
	for _, it := range found {
		r.add(it)
	}
	return nil
}

// Register adds it unless a model with the same name is already present.
func (r *ModelRegistry) Register(it Interrogator) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(it)
}

func (r *ModelRegistry) add(it Interrogator) bool {
	if _, ok := r.entries[it.Name()]; ok {
		return false
	}
	r.entries[it.Name()] = it
	r.names = append(r.names, it.Name())
	return true
}

// Close unloads every model.
func (r *ModelRegistry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, name := range r.names {
		if err := r.entries[name].Unload(); err != nil {
			errs = append(errs, fmt.Errorf("unload %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
