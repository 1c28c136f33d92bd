package arbor_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/widget"
)

// ExampleNew_memory builds a tree from an in-memory description library.
func ExampleNew_memory() {
	lib := memory.NewLoader(map[string]string{
		"home": `{
			"type": "panel", "id": "home",
			"children": [
				{"type": "label", "id": "greeting", "text": "py::'hello ' .. name"},
				{"type": "remote", "options": {"url": "lib://footer"}, "extend": {"id": "foot"}}
			]
		}`,
		"footer": `{"type": "label", "text": "bye"}`,
	})

	nodes := registry.NewNodes()
	widget.RegisterDefaults(nodes)

	blocks, err := arbor.New(
		arbor.WithNodes(nodes),
		arbor.WithLibrary(lib),
		arbor.WithEnv(map[string]any{"name": "arbor"}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer blocks.Close()

	root, err := blocks.BuildAddress(context.Background(), "lib://home")
	if err != nil {
		log.Fatal(err)
	}

	widget.Walk(root, 0, func(n domain.Node, depth int) bool {
		text, _ := n.Attribute("text")
		fmt.Printf("%s%s#%s %v\n", strings.Repeat("  ", depth), widget.TypeOf(n), n.ID(), text)
		return true
	})

	// Output:
	// panel#home <nil>
	//   label#greeting hello arbor
	//   label#foot bye
}
