package domain

// Reserved description keys.
const (
	KeyType       = "type"
	KeyID         = "id"
	KeyOptions    = "options"
	KeyChildren   = "children"
	KeySubwidgets = "subwidgets" // legacy alias of children
	KeyBinds      = "binds"
	KeyExtend     = "extend"
	KeyURL        = "url"
)

// Remote reference type tags.
const (
	TypeRemote    = "remote"
	TypeURLWidget = "urlwidget" // legacy alias of remote
)

// Description is a decoded JSON/YAML node description.
//
//	{ "type": "panel", "id": "main", "options": {...}, "children": [...], "binds": [...], "<attr>": ... }
type Description map[string]any

// AsDescription reports whether v is a keyed object carrying a "type" tag.
func AsDescription(v any) (Description, bool) {
	var m map[string]any
	switch t := v.(type) {
	case Description:
		m = t
	case map[string]any:
		m = t
	default:
		return nil, false
	}
	if s, ok := m[KeyType].(string); !ok || s == "" {
		return nil, false
	}
	return Description(m), true
}

// Type returns the node type tag.
func (d Description) Type() string {
	s, _ := d[KeyType].(string)
	return s
}

// IsRemote reports whether the description references another description.
func (d Description) IsRemote() bool {
	t := d.Type()
	return t == TypeRemote || t == TypeURLWidget
}

// ID returns the declared identifier.
func (d Description) ID() string {
	s, _ := d[KeyID].(string)
	return s
}

// Options returns a shallow copy of the constructor options.
func (d Description) Options() map[string]any {
	src, _ := d[KeyOptions].(map[string]any)
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Extend returns the overlay applied after a remote fetch.
func (d Description) Extend() map[string]any {
	m, _ := d[KeyExtend].(map[string]any)
	return m
}

// Children returns the nested child descriptions in declared order.
func (d Description) Children() []any {
	if c, ok := d[KeyChildren].([]any); ok {
		return c
	}
	c, _ := d[KeySubwidgets].([]any)
	return c
}

// Binds returns the raw bind specs in declared order.
func (d Description) Binds() []any {
	b, _ := d[KeyBinds].([]any)
	return b
}

// IsReserved reports whether key is handled structurally rather than as an attribute.
func IsReserved(key string) bool {
	switch key {
	case KeyType, KeyID, KeyOptions, KeyChildren, KeySubwidgets, KeyBinds, KeyExtend:
		return true
	}
	return false
}

// Clone returns a deep copy of the description. Maps and slices are copied,
// scalar values are shared.
func (d Description) Clone() Description {
	return Description(CloneMap(d))
}

// CloneMap deep-copies nested maps and slices.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies v when it is a map or slice.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Description:
		return Description(CloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
