package ports

import "github.com/aretw0/arbor/pkg/domain"

// NodeRegistry maps a description "type" to a node constructor.
type NodeRegistry interface {
	Register(typeName string, ctor domain.Constructor)
	Get(typeName string) (domain.Constructor, bool)
}

// FunctionRegistry maps a name to a callable used by "registeredfunction" actions.
type FunctionRegistry interface {
	Register(name string, fn domain.Function)
	Get(name string) (domain.Function, bool)
}
