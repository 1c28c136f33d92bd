package widget

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// ValueKey is the attribute read by GetValue.
const ValueKey = "value"

// Method is a named operation a Node exposes to "method" actions.
type Method func(n *Node, args []any, params map[string]any) error

// Node is a generic attribute/child/event node. It satisfies domain.Container,
// domain.Parented, domain.Valuer, domain.Readier and domain.MethodInvoker, and
// is what the CLI builds when no toolkit is plugged in.
type Node struct {
	mu sync.RWMutex

	typ      string
	id       string
	attrs    map[string]any
	children []domain.Node
	parent   domain.Node
	handlers map[string][]domain.Handler
	methods  map[string]Method
	ready    bool
}

// New creates a node of the given type with options applied as attributes.
func New(typ string, options map[string]any) *Node {
	n := &Node{
		typ:      typ,
		attrs:    make(map[string]any, len(options)),
		handlers: make(map[string][]domain.Handler),
		methods:  make(map[string]Method),
	}
	for k, v := range options {
		n.attrs[k] = v
	}
	n.methods["clear"] = func(n *Node, _ []any, _ map[string]any) error {
		n.ClearChildren()
		return nil
	}
	n.methods["set"] = func(n *Node, _ []any, params map[string]any) error {
		for k, v := range params {
			if err := n.SetAttribute(k, v); err != nil {
				return err
			}
		}
		return nil
	}
	return n
}

// Type returns the type tag the node was built from.
func (n *Node) Type() string { return n.typ }

// ID returns the identifier Finder paths match against.
func (n *Node) ID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.id
}

// SetID replaces the identifier.
func (n *Node) SetID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.id = id
}

// Attribute returns the named attribute and whether it is set.
func (n *Node) Attribute(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[name]
	return v, ok
}

// SetAttribute stores value under name. A *Node value is adopted as a child of n.
func (n *Node) SetAttribute(name string, value any) error {
	if name == "" {
		return fmt.Errorf("empty attribute name on %s", n.typ)
	}
	n.mu.Lock()
	n.attrs[name] = value
	n.mu.Unlock()

	if child, ok := value.(*Node); ok {
		child.setParent(n)
	}
	return nil
}

// Attributes returns a copy of the attribute map.
func (n *Node) Attributes() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]any, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// AttributeNames returns the attribute names in sorted order.
func (n *Node) AttributeNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AddChild appends child and sets its parent when it is a *Node.
func (n *Node) AddChild(child domain.Node) error {
	if child == nil {
		return fmt.Errorf("nil child on %s", n.typ)
	}
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()

	if c, ok := child.(*Node); ok {
		c.setParent(n)
	}
	return nil
}

// Children returns a copy of the child list.
func (n *Node) Children() []domain.Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]domain.Node, len(n.children))
	copy(out, n.children)
	return out
}

// ClearChildren detaches every child.
func (n *Node) ClearChildren() {
	n.mu.Lock()
	old := n.children
	n.children = nil
	n.mu.Unlock()

	for _, c := range old {
		if cn, ok := c.(*Node); ok {
			cn.setParent(nil)
		}
	}
}

// Parent returns the node n was added to, or nil.
func (n *Node) Parent() domain.Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

func (n *Node) setParent(p domain.Node) {
	n.mu.Lock()
	n.parent = p
	n.mu.Unlock()
}

// Bind appends handler to the handlers of event.
func (n *Node) Bind(event string, handler domain.Handler) error {
	if event == "" {
		return domain.ErrMissingEvent
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = append(n.handlers[event], handler)
	return nil
}

// Bindings returns how many handlers are bound to event.
func (n *Node) Bindings(event string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.handlers[event])
}

// Events returns the names of bound events in sorted order.
func (n *Node) Events() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.handlers))
	for k, hs := range n.handlers {
		if len(hs) > 0 {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handlers bound to event in bind order.
func (n *Node) Dispatch(event string, args ...any) error {
	n.mu.RLock()
	hs := make([]domain.Handler, len(n.handlers[event]))
	copy(hs, n.handlers[event])
	n.mu.RUnlock()

	for _, h := range hs {
		h(n, args...)
	}
	return nil
}

// GetValue returns the "value" attribute when it is a map, otherwise the values
// of every identified descendant carrying a "value" attribute keyed by id.
func (n *Node) GetValue() map[string]any {
	if v, ok := n.Attribute(ValueKey); ok {
		if m, ok := v.(map[string]any); ok {
			out := make(map[string]any, len(m))
			for k, item := range m {
				out[k] = item
			}
			return out
		}
	}
	out := make(map[string]any)
	collectValues(n, out)
	return out
}

func collectValues(n domain.Node, out map[string]any) {
	c, ok := n.(domain.Container)
	if !ok {
		return
	}
	for _, child := range c.Children() {
		if id := child.ID(); id != "" {
			if v, ok := child.Attribute(ValueKey); ok {
				out[id] = v
			}
		}
		collectValues(child, out)
	}
}

// Ready records that the node and its subtree finished building. Repeated calls are no-ops.
func (n *Node) Ready() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = true
}

// IsReady reports whether Ready was called.
func (n *Node) IsReady() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ready
}

// RegisterMethod exposes fn under name to "method" actions.
func (n *Node) RegisterMethod(name string, fn Method) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods[name] = fn
}

// Invoke runs a registered method. It reports false when no method has that name.
func (n *Node) Invoke(method string, args []any, params map[string]any) (bool, error) {
	n.mu.RLock()
	fn, ok := n.methods[method]
	n.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, fn(n, args, params)
}

func (n *Node) String() string {
	if id := n.ID(); id != "" {
		return n.typ + "#" + id
	}
	return n.typ
}
