/*
Package arbor builds interactive node trees at runtime from JSON or YAML
descriptions and interprets the actions those descriptions bind to events.

A description names a node type, its options, attributes, children and binds:

	{
	  "type": "panel", "id": "main",
	  "children": [{"type": "remote", "options": {"url": "lib://header"}}],
	  "binds": [{"event": "press", "actiontype": "blocks", "target": "body",
	             "options": {"type": "label", "text": "py::self.id"}}]
	}

Strings prefixed with "py::" (or "lua::") are evaluated in a sandboxed Lua
state. "remote" nodes are fetched from file://, http(s)://, lib:// or
app-relative addresses before building; HTTP calls keep one session per host.

# Usage

	nodes := registry.NewNodes()
	widget.RegisterDefaults(nodes)

	blocks, err := arbor.New(arbor.WithNodes(nodes), arbor.WithLibraryDir("./ui"))
	if err != nil {
		log.Fatal(err)
	}
	defer blocks.Close()

	root, err := blocks.BuildAddress(ctx, "lib://home")

The concrete toolkit plugs in through ports.NodeRegistry and ports.Host;
pkg/widget provides a generic node for hosts without one.
*/
package arbor
