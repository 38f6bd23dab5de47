package provider

import "sync"

// Registry holds the configured platform adapters keyed by platform.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[Platform]Adapter),
	}
}

// Register adds an adapter, replacing any adapter already registered for
// the same platform.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for a platform, or nil if none is configured.
func (r *Registry) Get(p Platform) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[p]
}

// All returns the configured adapters in canonical platform order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Adapter
	for _, p := range AllPlatforms() {
		if a, ok := r.adapters[p]; ok {
			result = append(result, a)
		}
	}
	return result
}

// Platforms returns the configured platforms in canonical order.
func (r *Registry) Platforms() []Platform {
	adapters := r.All()
	out := make([]Platform, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.Platform())
	}
	return out
}

// Len returns the number of configured adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
