/*
Package dsl builds arbor descriptions in Go instead of JSON or YAML files.

Descriptions are plain maps, which makes typos in reserved keys easy to miss.
The fluent builders here write those keys for you and can compile a whole
library into an in-memory loader for arbor.WithLibrary or for tests.

Example usage:

	lib := dsl.New()

	lib.Add("home", "panel").
		ID("home").
		Child(
			dsl.Node("label").ID("greeting").Attr("text", "py::'hello ' .. name"),
			dsl.Node("button").ID("more").Bind(
				dsl.On("press", domain.ActionRemote).
					Target("root.home").
					Mode(domain.ModeAppend).
					Set("url", "lib://footer"),
			),
		)

	lib.Add("footer", "label").Attr("text", "bye")

	loader, err := lib.Build()
	if err != nil {
		return err
	}
	blocks, err := arbor.New(arbor.WithLibrary(loader))
*/
package dsl
