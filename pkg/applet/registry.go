package applet

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an applet from its stage options.
type Factory func(opts Options) (Applet, error)

// Registry maps module names to applet factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. It returns an error if the name is
// empty or already registered.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("applet factory needs a name")
	}
	if f == nil {
		return fmt.Errorf("applet %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("applet %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// List returns the registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the applet registered under name.
func (r *Registry) New(name string, opts Options) (Applet, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown applet module %q", name)
	}
	a, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("applet %q: %w", name, err)
	}
	return a, nil
}
