package dsl

import "github.com/aretw0/arbor/pkg/domain"

// NodeBuilder provides a fluent API for configuring one description.
type NodeBuilder struct {
	desc domain.Description
}

// Node starts a free-standing description, usually nested with Child or Attr.
func Node(typ string) *NodeBuilder {
	return &NodeBuilder{desc: domain.Description{domain.KeyType: typ}}
}

// Remote starts a reference that is fetched from url at build time.
func Remote(url string) *NodeBuilder {
	return Node(domain.TypeRemote).Option(domain.KeyURL, url)
}

// ID sets the identifier used by Finder lookups.
func (n *NodeBuilder) ID(id string) *NodeBuilder {
	n.desc[domain.KeyID] = id
	return n
}

// Option sets one constructor option.
func (n *NodeBuilder) Option(key string, value any) *NodeBuilder {
	opts, _ := n.desc[domain.KeyOptions].(map[string]any)
	if opts == nil {
		opts = make(map[string]any)
		n.desc[domain.KeyOptions] = opts
	}
	opts[key] = unwrap(value)
	return n
}

// Attr sets a post-construction attribute. A *NodeBuilder value becomes a nested description.
func (n *NodeBuilder) Attr(key string, value any) *NodeBuilder {
	n.desc[key] = unwrap(value)
	return n
}

// Extend adds one overlay key applied on top of a remote description.
func (n *NodeBuilder) Extend(key string, value any) *NodeBuilder {
	ext, _ := n.desc[domain.KeyExtend].(map[string]any)
	if ext == nil {
		ext = make(map[string]any)
		n.desc[domain.KeyExtend] = ext
	}
	ext[key] = unwrap(value)
	return n
}

// Child appends child descriptions in order.
func (n *NodeBuilder) Child(children ...*NodeBuilder) *NodeBuilder {
	list, _ := n.desc[domain.KeyChildren].([]any)
	for _, c := range children {
		list = append(list, c.Build())
	}
	n.desc[domain.KeyChildren] = list
	return n
}

// Bind appends event bindings in order.
func (n *NodeBuilder) Bind(binds ...*BindBuilder) *NodeBuilder {
	list, _ := n.desc[domain.KeyBinds].([]any)
	for _, b := range binds {
		list = append(list, b.Build())
	}
	n.desc[domain.KeyBinds] = list
	return n
}

// Build returns a copy of the description built so far.
func (n *NodeBuilder) Build() domain.Description {
	return n.desc.Clone()
}

func unwrap(v any) any {
	switch t := v.(type) {
	case *NodeBuilder:
		return t.Build()
	case *BindBuilder:
		return t.Build()
	default:
		return v
	}
}

// BindBuilder provides a fluent API for one entry of a "binds" list.
type BindBuilder struct {
	spec map[string]any
}

// On starts a binding of event to an action of the given actiontype.
func On(event, actiontype string) *BindBuilder {
	return &BindBuilder{spec: map[string]any{
		"event":      event,
		"actiontype": actiontype,
	}}
}

// From registers the event on the node named id instead of the owner.
func (b *BindBuilder) From(id string) *BindBuilder {
	b.spec["wid"] = id
	return b
}

// Target names the node the action applies to.
func (b *BindBuilder) Target(id string) *BindBuilder {
	b.spec["target"] = id
	return b
}

// Mode selects replace or append placement for blocks and remote actions.
func (b *BindBuilder) Mode(mode string) *BindBuilder {
	b.spec["mode"] = mode
	return b
}

// Params sets the static params merged into the action call.
func (b *BindBuilder) Params(params map[string]any) *BindBuilder {
	b.spec["params"] = params
	return b
}

// Set writes any other action field, such as "url", "rfname" or "script".
func (b *BindBuilder) Set(key string, value any) *BindBuilder {
	b.spec[key] = unwrap(value)
	return b
}

// Then appends sub-actions to a "multiple" binding.
func (b *BindBuilder) Then(actions ...*BindBuilder) *BindBuilder {
	list, _ := b.spec["actions"].([]any)
	for _, a := range actions {
		list = append(list, a.Build())
	}
	b.spec["actions"] = list
	return b
}

// Build returns a copy of the bind spec.
func (b *BindBuilder) Build() map[string]any {
	return domain.CloneMap(b.spec)
}
