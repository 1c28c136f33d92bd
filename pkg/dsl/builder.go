package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// Builder collects named descriptions into a library.
type Builder struct {
	docs map[string]*NodeBuilder
}

// New creates an empty library builder.
func New() *Builder {
	return &Builder{
		docs: make(map[string]*NodeBuilder),
	}
}

// Add starts the library entry id with a root of type typ.
// If the entry already exists, it returns the existing builder.
func (b *Builder) Add(id, typ string) *NodeBuilder {
	if nb, ok := b.docs[id]; ok {
		return nb
	}
	nb := Node(typ)
	b.docs[id] = nb
	return nb
}

// Descriptions returns a copy of every entry keyed by library id.
func (b *Builder) Descriptions() map[string]domain.Description {
	out := make(map[string]domain.Description, len(b.docs))
	for id, nb := range b.docs {
		out[id] = nb.Build()
	}
	return out
}

// Build compiles the library into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	loader, err := memory.NewFromDescriptions(b.Descriptions())
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
