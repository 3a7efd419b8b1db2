package plugin

import (
	"fmt"
	"sync"
)

// Registry is the factory lookup the job loader resolves searcher/builder/
// generator identifiers through. Plugins are keyed by name; registering the
// same name again with a new version stacks on top, and GetLatest returns
// the most recently registered version.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string][]Plugin
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: map[string][]Plugin{}}
}

// Register adds a plugin after validating its metadata. Registering the
// same name and version twice is an error; a new version of an existing
// name is not.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	meta := p.Metadata()
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins[meta.Name] {
		if existing.Metadata().Version == meta.Version {
			return fmt.Errorf("plugin %s@%s already registered", meta.Name, meta.Version)
		}
	}
	r.plugins[meta.Name] = append(r.plugins[meta.Name], p)
	return nil
}

// GetLatest returns the most recently registered version of name.
func (r *Registry) GetLatest(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.plugins[name]
	if len(versions) == 0 {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	return versions[len(versions)-1], nil
}

// Has reports whether any version of name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins[name]) > 0
}
