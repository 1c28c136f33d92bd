package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/widget"
)

// GraphOverlay marks nodes to highlight on the graph, by identifier.
type GraphOverlay struct {
	Highlighted []string
	Focused     string
}

type eventLister interface {
	Events() []string
}

type attributeLister interface {
	AttributeNames() []string
}

// GenerateMermaid produces a Mermaid flowchart of a built node tree.
// It applies semantic styling:
// - Root: ((Circle))
// - Input (input/form): [/Parallelogram/]
// - Button: ([Stadium])
// - Default: [Rectangle]
// Children are solid edges; node-valued attributes are dotted edges labeled with the attribute name.
func GenerateMermaid(root domain.Node, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	g := &generator{sb: &sb, ids: make(map[domain.Node]string), byID: make(map[string][]string)}
	g.visit(root, true)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef highlighted fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef focused fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Highlighted {
			for _, safe := range g.byID[id] {
				if !seen[safe] {
					seen[safe] = true
					sb.WriteString(fmt.Sprintf("    class %s highlighted;\n", safe))
				}
			}
		}
		for _, safe := range g.byID[overlay.Focused] {
			sb.WriteString(fmt.Sprintf("    class %s focused;\n", safe))
		}
	}
	return sb.String()
}

type generator struct {
	sb   *strings.Builder
	ids  map[domain.Node]string
	byID map[string][]string
	seq  int
}

// visit writes n once and returns its mermaid identifier.
func (g *generator) visit(n domain.Node, isRoot bool) string {
	memo := reflect.TypeOf(n).Comparable()
	if memo {
		if safe, ok := g.ids[n]; ok {
			return safe
		}
	}
	safe := fmt.Sprintf("n%d", g.seq)
	g.seq++
	if memo {
		g.ids[n] = safe
	}
	if id := n.ID(); id != "" {
		g.byID[id] = append(g.byID[id], safe)
	}

	typ := widget.TypeOf(n)
	opener, closer := "[", "]"
	switch {
	case isRoot:
		opener, closer = "((", "))"
	case typ == "input" || typ == "form":
		opener, closer = "[/", "/]"
	case typ == "button":
		opener, closer = "([", "])"
	}

	label := typ
	if id := n.ID(); id != "" {
		label = typ + "#" + sanitizeLabel(id)
	}
	if el, ok := n.(eventLister); ok {
		if events := el.Events(); len(events) > 0 {
			label += " <br/> ⚡ " + strings.Join(events, ", ")
		}
	}
	g.sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safe, opener, label, closer))

	if al, ok := n.(attributeLister); ok {
		names := al.AttributeNames()
		sort.Strings(names)
		for _, name := range names {
			v, _ := n.Attribute(name)
			child, ok := v.(domain.Node)
			if !ok || child == nil {
				continue
			}
			to := g.visit(child, false)
			g.sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", safe, sanitizeLabel(name), to))
		}
	}

	if c, ok := n.(domain.Container); ok {
		for _, child := range c.Children() {
			to := g.visit(child, false)
			g.sb.WriteString(fmt.Sprintf("    %s --> %s\n", safe, to))
		}
	}
	return safe
}

func sanitizeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
