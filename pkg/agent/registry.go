package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Kind names an agent implementation.
type Kind string

// KindChat is the chat-completion agent.
const KindChat Kind = "chat"

// Constructor builds an agent of one kind.
type Constructor func(cfg Config, opts ...Option) (Agent, error)

// Registry maps agent kinds to constructors. It is safe for concurrent
// registration and lookup.
type Registry struct {
	mu           sync.RWMutex
	constructors map[Kind]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[Kind]Constructor)}
}

// Register binds kind to ctor, replacing any previous binding.
func (r *Registry) Register(kind Kind, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[kind] = ctor
}

// Create builds a new agent of the given kind. It returns an error
// wrapping ErrUnknownKind when nothing is registered under kind.
func (r *Registry) Create(kind Kind, cfg Config, opts ...Option) (Agent, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return ctor(cfg, opts...)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(KindChat, newChat)
	return r
}()

// DefaultRegistry returns the process-wide registry, which has KindChat
// registered.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register binds kind in the default registry.
func Register(kind Kind, ctor Constructor) {
	defaultRegistry.Register(kind, ctor)
}

// Create builds an agent from the default registry.
func Create(kind Kind, cfg Config, opts ...Option) (Agent, error) {
	return defaultRegistry.Create(kind, cfg, opts...)
}
