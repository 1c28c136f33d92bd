package domain

// Handler is invoked when a bound event fires on a node.
// Source is the node that dispatched the event; args are the event payload.
type Handler func(source Node, args ...any)

// Node is the contract every constructible UI element must satisfy.
// Implementations are provided by the host toolkit (see pkg/widget for a reference one).
type Node interface {
	// ID returns the lookup identifier of the node ("" when unset).
	ID() string
	// SetID changes the lookup identifier.
	SetID(id string)

	// Attribute returns a named attribute and whether it exists.
	Attribute(name string) (any, bool)
	// SetAttribute sets a named attribute.
	SetAttribute(name string, value any) error

	// AddChild appends a child node, preserving insertion order.
	AddChild(child Node) error

	// Bind registers a handler for an event name.
	Bind(event string, handler Handler) error
	// Dispatch fires an event with the given payload.
	Dispatch(event string, args ...any) error
}

// Container is implemented by nodes that hold an ordered list of children.
// The identifier resolver walks containers depth-first.
type Container interface {
	Node
	Children() []Node
	ClearChildren()
}

// Parented is implemented by nodes that know their parent.
type Parented interface {
	Parent() Node
}

// Valuer is implemented by "data nodes" (forms, inputs) whose current value
// can be merged into action parameters.
type Valuer interface {
	GetValue() map[string]any
}

// Readier is implemented by nodes that want a callback once the tree they belong to is built.
type Readier interface {
	Ready()
}

// MethodInvoker lets a node expose named methods without reflection.
// Invoke reports false when the method does not exist.
type MethodInvoker interface {
	Invoke(method string, args []any, params map[string]any) (bool, error)
}

// Constructor instantiates a node from its evaluated options.
type Constructor func(options map[string]any) (Node, error)

// Function is a process-wide callable addressable from a "registeredfunction" action.
type Function func(target Node, args []any, params map[string]any) error
