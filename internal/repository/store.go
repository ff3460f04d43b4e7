package repository

import "sync"

// Store is the type-erased view of a Repository used by the loader and the
// HTTP surface, which handle many item types at once.
type Store interface {
	ItemType() string
	Clear()
	Len() int
	// Snapshot returns a copy of all items as a []T boxed in an any.
	Snapshot() any
}

// Repository keeps an in-memory collection of T.
// Add, Clear and Get share a single lock, so a reader never observes a
// partially appended batch.
type Repository[T any] struct {
	mu       sync.RWMutex
	itemType string
	items    []T
}

// New creates an empty repository for the named item type.
func New[T any](itemType string) *Repository[T] {
	return &Repository[T]{itemType: itemType}
}

// ItemType returns the registered name of T.
func (r *Repository[T]) ItemType() string {
	return r.itemType
}

// Add appends a batch, preserving arrival order.
func (r *Repository[T]) Add(items []T) {
	if len(items) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
}

// Clear removes all items.
func (r *Repository[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Get returns the items matching pred as a point-in-time copy.
// A nil predicate matches everything.
func (r *Repository[T]) Get(pred func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.items))
	for _, item := range r.items {
		if pred == nil || pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the current number of items.
func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns all items as []T.
func (r *Repository[T]) Snapshot() any {
	return r.Get(nil)
}
