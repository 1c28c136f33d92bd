package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/widget"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

type attributeLister interface {
	AttributeNames() []string
}

// Outline renders a built tree as a nested markdown list. Scalar attributes are
// listed inline; node-valued attributes nest under their name.
func Outline(root domain.Node) string {
	var sb strings.Builder
	sb.WriteString("# Tree\n\n")
	if root == nil {
		sb.WriteString("_empty_\n")
		return sb.String()
	}
	writeNode(&sb, root, 0, "")
	return sb.String()
}

func writeNode(sb *strings.Builder, n domain.Node, depth int, via string) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent + "- ")
	if via != "" {
		sb.WriteString("_" + via + "_: ")
	}
	sb.WriteString("**" + widget.TypeOf(n) + "**")
	if id := n.ID(); id != "" {
		sb.WriteString(" `#" + id + "`")
	}

	var nested []string
	if al, ok := n.(attributeLister); ok {
		var scalars []string
		for _, name := range al.AttributeNames() {
			v, _ := n.Attribute(name)
			if _, isNode := v.(domain.Node); isNode {
				nested = append(nested, name)
				continue
			}
			scalars = append(scalars, fmt.Sprintf("%s=%v", name, v))
		}
		if len(scalars) > 0 {
			sb.WriteString(" (" + strings.Join(scalars, ", ") + ")")
		}
	}
	sb.WriteString("\n")

	sort.Strings(nested)
	for _, name := range nested {
		v, _ := n.Attribute(name)
		writeNode(sb, v.(domain.Node), depth+1, name)
	}
	if c, ok := n.(domain.Container); ok {
		for _, child := range c.Children() {
			writeNode(sb, child, depth+1, "")
		}
	}
}

// NewRenderer returns a function that renders markdown with glamour when stdout
// is a terminal, and passes it through unchanged otherwise.
func NewRenderer() func(string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
