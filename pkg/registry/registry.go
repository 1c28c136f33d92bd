package registry

import (
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Nodes manages the constructible node types.
type Nodes struct {
	mu    sync.RWMutex
	types map[string]domain.Constructor
}

// NewNodes creates a new empty node registry.
func NewNodes() *Nodes {
	return &Nodes{
		types: make(map[string]domain.Constructor),
	}
}

// Register adds a node type to the registry.
// If a type with the same name exists, it is overwritten.
func (r *Nodes) Register(typeName string, ctor domain.Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typeName] = ctor
}

// Get looks up a constructor by type name.
func (r *Nodes) Get(typeName string) (domain.Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.types[typeName]
	return ctor, ok
}

// Names returns the registered type names in sorted order.
func (r *Nodes) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions manages the callables reachable from "registeredfunction" actions.
type Functions struct {
	mu    sync.RWMutex
	funcs map[string]domain.Function
}

// NewFunctions creates a new empty function registry.
func NewFunctions() *Functions {
	return &Functions{
		funcs: make(map[string]domain.Function),
	}
}

// Register adds a function to the registry, overwriting any previous one with the same name.
func (r *Functions) Register(name string, fn domain.Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Get looks up a function by name.
func (r *Functions) Get(name string) (domain.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names in sorted order.
func (r *Functions) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultNodes     = NewNodes()
	defaultFunctions = NewFunctions()
)

// DefaultNodes returns the process-wide node registry.
func DefaultNodes() *Nodes { return defaultNodes }

// DefaultFunctions returns the process-wide function registry.
func DefaultFunctions() *Functions { return defaultFunctions }
