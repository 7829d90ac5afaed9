package extension

import (
	"fmt"
	"sync"
	"time"
)

// Entry records one loaded extension file.
type Entry struct {
	File     string    `json:"file"`
	Tool     string    `json:"tool"`
	Hash     string    `json:"hash"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Registry tracks loaded extension files in load order. A file stays
// registered for the life of the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Add records a loaded file. Adding the same file twice is an error.
func (r *Registry) Add(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.File]; exists {
		return fmt.Errorf("extension already loaded: %s", e.File)
	}
	if e.LoadedAt.IsZero() {
		e.LoadedAt = time.Now()
	}
	r.entries[e.File] = e
	r.order = append(r.order, e.File)
	return nil
}

// Get returns the entry for file.
func (r *Registry) Get(file string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[file]
	return e, ok
}

// Has reports whether file has been loaded.
func (r *Registry) Has(file string) bool {
	_, ok := r.Get(file)
	return ok
}

// List returns all entries in load order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, f := range r.order {
		out = append(out, r.entries[f])
	}
	return out
}

// Count returns the number of loaded files.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
