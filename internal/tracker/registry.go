package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Tracker from connection settings.
type Factory func(Settings) (Tracker, error)

// Registry maps tracker names to factories. Adapters register themselves
// at init time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry. Names are lowercase.
func Register(name string, f Factory) {
	globalRegistry.Register(name, f)
}

// List returns the names registered globally.
func List() []string {
	return globalRegistry.List()
}

// New builds the named tracker from the global registry.
func New(name string, s Settings) (Tracker, error) {
	return globalRegistry.New(name, s)
}

// Register adds a factory, replacing any previous one with the same name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// List returns the registered names, sorted.
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

// New builds the named tracker.
func (r *Registry) New(name string, s Settings) (Tracker, error) {
	r.mu.RLock()
	f := r.factories[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unknown tracker %q (available: %v)", name, r.List())
	}
	return f(s)
}
