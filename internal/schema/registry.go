package schema

import (
	"fmt"
	"sort"
	"sync"
)

// UnknownEntityError is returned when no schema is registered for a name.
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity: %s", e.Name)
}

// Registry holds the registered entity schemas.
// Registration happens during startup; lookups are concurrency-safe.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register adds a schema to the registry.
// Panics on a duplicate or internally inconsistent schema: both are
// programming errors in the built-in catalog, not runtime conditions.
func (r *Registry) Register(s Schema) {
	if err := s.validate(); err != nil {
		panic("schema: " + err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name]; exists {
		panic("schema already registered: " + s.Name)
	}
	r.schemas[s.Name] = s
}

// Get returns the schema for an entity name.
func (r *Registry) Get(name string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[name]
	if !ok {
		return Schema{}, &UnknownEntityError{Name: name}
	}
	return s, nil
}

// Names returns all registered entity names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks cross-schema consistency: every relation must target a
// registered entity. Called once after the catalog is loaded.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, s := range r.schemas {
		for _, rel := range s.Relations {
			if _, ok := r.schemas[rel.Target]; !ok {
				return fmt.Errorf("entity %q: relation %q targets unregistered entity %q", name, rel.Local, rel.Target)
			}
		}
	}
	return nil
}
