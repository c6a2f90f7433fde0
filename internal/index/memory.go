package index

import (
	"sync"
	"time"
)

// MemoryIndex keeps live objects by name and remembers insertion order.
type MemoryIndex[T any] struct {
	mu         sync.RWMutex
	items      map[string]T
	order      []string
	lastUpdate time.Time
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex[T any]() *MemoryIndex[T] {
	return &MemoryIndex[T]{
		items: make(map[string]T),
	}
}

// Add stores item under name. An existing entry is replaced in place and
// keeps its position.
func (idx *MemoryIndex[T]) Add(name string, item T) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.items[name]; !ok {
		idx.order = append(idx.order, name)
	}
	idx.items[name] = item
	idx.lastUpdate = time.Now()
}

// Get retrieves an item by name
func (idx *MemoryIndex[T]) Get(name string) (T, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	item, ok := idx.items[name]
	return item, ok
}

// GetAll returns every item in insertion order
func (idx *MemoryIndex[T]) GetAll() []T {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]T, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.items[name])
	}
	return out
}

// Names returns the keys in insertion order
func (idx *MemoryIndex[T]) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return append([]string(nil), idx.order...)
}

// Delete removes an item from the index
func (idx *MemoryIndex[T]) Delete(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.items[name]; !ok {
		return
	}
	delete(idx.items, name)
	for i, n := range idx.order {
		if n == name {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	idx.lastUpdate = time.Now()
}

// Count returns the number of items in the index
func (idx *MemoryIndex[T]) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.items)
}

// GetLastUpdate returns the time of the last change
func (idx *MemoryIndex[T]) GetLastUpdate() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastUpdate
}
