package vector

import (
	"sync"
)

// GlobalCollection names the always-present collection that accumulates
// passages across every document.
const GlobalCollection = "__global__"

// Registry maps collection names to their indexes. A collection appears only
// once its ingestion finished building the index, so readers never observe a
// half-built collection.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
	global  *Index
}

// NewRegistry creates a registry with an empty global collection
func NewRegistry() (*Registry, error) {
	global, err := NewIndex()
	if err != nil {
		return nil, err
	}
	return &Registry{
		indexes: make(map[string]*Index),
		global:  global,
	}, nil
}

// Register publishes a fully built index under the collection name,
// replacing any previous index for that name.
func (r *Registry) Register(name string, idx *Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.indexes[name]; ok {
		old.Close()
	}
	r.indexes[name] = idx
}

// Get returns the index for a collection, or nil if absent
func (r *Registry) Get(name string) *Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexes[name]
}

// Global returns the cross-document collection
func (r *Registry) Global() *Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}

// Remove drops a collection. The global collection is unaffected.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[name]; ok {
		idx.Close()
		delete(r.indexes, name)
	}
}

// Collections lists registered collection names
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		names = append(names, name)
	}
	return names
}

// Close releases every index
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, idx := range r.indexes {
		idx.Close()
	}
	r.indexes = make(map[string]*Index)
	r.global.Close()
}
