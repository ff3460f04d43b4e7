// Package registry maps configuration names to item types, task factories
// and shared repository instances. Everything is registered explicitly at
// startup; nothing is discovered at runtime.
package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/repository"
	"github.com/bassista/go_refresh/internal/task"
)

// ItemType is the type-erased handle of a registered record type.
type ItemType interface {
	Name() string
	NewStore() repository.Store
	Accepts(store repository.Store) bool
	Open(src io.Reader, source string, opts reader.Options, onError reader.ErrorHandler) (Stream, error)
	// Append adds a batch produced by a Stream of this type to store.
	Append(store repository.Store, batch any) error
}

// Stream reads batches of one item type without exposing T.
type Stream interface {
	EndOfStream() bool
	ReadBatch(ctx context.Context, max int) (batch any, n int, err error)
}

// Registry stores item types, task factories and named repositories.
type Registry struct {
	mu    sync.RWMutex
	items map[string]ItemType
	tasks map[string]task.Factory
	repos map[string]repository.Store
}

func New() *Registry {
	return &Registry{
		items: make(map[string]ItemType),
		tasks: make(map[string]task.Factory),
		repos: make(map[string]repository.Store),
	}
}

// RegisterItem registers T under name.
func RegisterItem[T any](r *Registry, name string) error {
	if r == nil {
		return fmt.Errorf("register item type: registry is nil")
	}
	if name == "" {
		return fmt.Errorf("register item type: name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		return &DuplicateError{Kind: KindItem, Name: name}
	}
	r.items[name] = itemType[T]{name: name}
	return nil
}

// MustRegisterItem panics on registration error; intended for bootstrap code paths.
func MustRegisterItem[T any](r *Registry, name string) {
	if err := RegisterItem[T](r, name); err != nil {
		panic(err)
	}
}

// RegisterTask registers a task factory under a type name.
func (r *Registry) RegisterTask(name string, factory task.Factory) error {
	if name == "" {
		return fmt.Errorf("register task type: name is empty")
	}
	if factory == nil {
		return fmt.Errorf("register task type: factory is nil for %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return &DuplicateError{Kind: KindTask, Name: name}
	}
	r.tasks[name] = factory
	return nil
}

// RegisterRepository registers a named store. Its item type must already be
// registered and must match the store's element type.
func (r *Registry) RegisterRepository(name string, store repository.Store) error {
	if name == "" {
		return fmt.Errorf("register repository: name is empty")
	}
	if store == nil {
		return fmt.Errorf("register repository: store is nil for %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repos[name]; exists {
		return &DuplicateError{Kind: KindRepository, Name: name}
	}
	it, ok := r.items[store.ItemType()]
	if !ok {
		return &NotFoundError{Kind: KindItem, Name: store.ItemType()}
	}
	if !it.Accepts(store) {
		return fmt.Errorf("register repository %s: %w: store does not hold %s", name, ErrTypeMismatch, it.Name())
	}
	r.repos[name] = store
	return nil
}

// ItemType resolves a registered item type by name.
func (r *Registry) ItemType(name string) (ItemType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[name]
	if !ok {
		return nil, &NotFoundError{Kind: KindItem, Name: name}
	}
	return it, nil
}

// Repository resolves a named store.
func (r *Registry) Repository(name string) (repository.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.repos[name]
	if !ok {
		return nil, &NotFoundError{Kind: KindRepository, Name: name}
	}
	return store, nil
}

// NewTask builds a runner of the named task type from a property bag.
func (r *Registry) NewTask(typeName string, props map[string]any) (task.Runner, error) {
	r.mu.RLock()
	factory, ok := r.tasks[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: KindTask, Name: typeName}
	}

	if props == nil {
		props = map[string]any{}
	}
	runner, err := factory(props)
	if err != nil {
		return nil, fmt.Errorf("create task %s: %w", typeName, err)
	}
	return runner, nil
}

// ItemTypes returns the registered item type names in sorted order.
func (r *Registry) ItemTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskTypes returns the registered task type names in sorted order.
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
