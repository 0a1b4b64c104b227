// Package registry maps short type keys to implementations across four
// independent namespaces: specifications, parsers, executors and protocols.
//
// A Registry is built once at startup and handed to its users; there is no
// package-level instance. Every namespace shares the registry's read-write
// lock, so lookups run concurrently and registrations are serialized.
package registry

import (
	"slices"
	"sync"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
)

// Factory creates one implementation. It receives the registry that owns
// it, so an implementation can look up its own collaborators.
type Factory[T any] func(r *Registry) (T, error)

// Namespace is one key to implementation map.
type Namespace[T any] struct {
	name     string
	mu       *sync.RWMutex
	owner    *Registry
	entries  map[string]Factory[T]
	order    []string // first registration order
	onChange func()
}

func newNamespace[T any](name string, owner *Registry) *Namespace[T] {
	return &Namespace[T]{
		name:    name,
		mu:      &owner.mu,
		owner:   owner,
		entries: make(map[string]Factory[T]),
	}
}

// Name returns the namespace name used in errors and summaries.
func (n *Namespace[T]) Name() string { return n.name }

// Register adds or silently replaces the factory for key.
func (n *Namespace[T]) Register(key string, factory Factory[T]) {
	n.mu.Lock()
	if _, exists := n.entries[key]; !exists {
		n.order = append(n.order, key)
	}
	n.entries[key] = factory
	n.mu.Unlock()
	if n.onChange != nil {
		n.onChange()
	}
}

// Unregister removes key. It reports whether key was registered.
func (n *Namespace[T]) Unregister(key string) bool {
	n.mu.Lock()
	_, ok := n.entries[key]
	if ok {
		delete(n.entries, key)
		n.order = slices.DeleteFunc(n.order, func(k string) bool { return k == key })
	}
	n.mu.Unlock()
	if ok && n.onChange != nil {
		n.onChange()
	}
	return ok
}

// Clear removes every registration.
func (n *Namespace[T]) Clear() {
	n.mu.Lock()
	n.entries = make(map[string]Factory[T])
	n.order = nil
	n.mu.Unlock()
	if n.onChange != nil {
		n.onChange()
	}
}

// Get returns the factory for key. It never fails; ok is false when key is
// unknown.
func (n *Namespace[T]) Get(key string) (Factory[T], bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	f, ok := n.entries[key]
	return f, ok
}

// Has reports whether key is registered.
func (n *Namespace[T]) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Create instantiates the implementation registered for key, failing with
// *gwerrors.UnknownTypeError when there is none.
func (n *Namespace[T]) Create(key string) (T, error) {
	f, ok := n.Get(key)
	if !ok {
		var zero T
		return zero, &gwerrors.UnknownTypeError{Namespace: n.name, Key: key}
	}
	return f(n.owner)
}

// List returns the registered keys in first-registration order.
func (n *Namespace[T]) List() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.order)
}

// Len returns the number of registered keys.
func (n *Namespace[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}
