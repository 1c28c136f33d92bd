package widget

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultTypes are the type names RegisterDefaults installs.
var DefaultTypes = []string{
	"app", "panel", "box", "grid", "scroll",
	"label", "text", "button", "input", "image",
	"form", "list", "modal",
}

// Constructor returns a domain.Constructor building generic nodes of typ.
func Constructor(typ string) domain.Constructor {
	return func(options map[string]any) (domain.Node, error) {
		return New(typ, options), nil
	}
}

// RegisterDefaults registers every DefaultTypes name on reg.
func RegisterDefaults(reg ports.NodeRegistry) {
	for _, typ := range DefaultTypes {
		reg.Register(typ, Constructor(typ))
	}
}

// Walk visits n and its descendants depth-first, stopping when fn returns false.
func Walk(n domain.Node, depth int, fn func(n domain.Node, depth int) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, depth) {
		return false
	}
	if c, ok := n.(domain.Container); ok {
		for _, child := range c.Children() {
			if !Walk(child, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// TypeOf returns the type tag of nodes built by this package, "node" otherwise.
func TypeOf(n domain.Node) string {
	if t, ok := n.(interface{ Type() string }); ok {
		return t.Type()
	}
	return "node"
}
