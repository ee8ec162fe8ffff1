package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the plugins available to the orchestrator, keyed by
// source identifier. Each source gets its own plugin instance so no state
// is shared between sources.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates a registry from the given plugins. Nil entries are
// skipped; a duplicate source identifier replaces the earlier entry.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if p == nil {
			continue
		}
		r.plugins[p.Source()] = p
	}
	return r
}

// Register adds or replaces the plugin for its source identifier.
func (r *Registry) Register(p Plugin) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Source()] = p
}

// Lookup returns the plugin registered for sourceID.
func (r *Registry) Lookup(sourceID string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[sourceID]
	if !ok {
		return nil, fmt.Errorf("no plugin registered for source %q", sourceID)
	}
	return p, nil
}

// Sources returns the registered source identifiers in sorted order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
