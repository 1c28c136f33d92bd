package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_PanelScenario(t *testing.T) {
	b := newBuilder()
	desc := map[string]any{
		"type": "panel",
		"children": []any{
			map[string]any{"type": "label", "options": map[string]any{"text": "hi"}},
		},
		"binds": []any{
			map[string]any{"event": "press", "actiontype": "method", "method": "refresh", "target": "self"},
		},
	}

	node, err := b.Build(context.Background(), desc)
	require.NoError(t, err)

	p, ok := node.(*panel)
	require.True(t, ok)
	require.Len(t, p.Children(), 1)
	text, _ := p.Children()[0].Attribute("text")
	assert.Equal(t, "hi", text)
	assert.Equal(t, 1, p.Bindings("press"))
	assert.True(t, p.IsReady())
	assert.True(t, p.Children()[0].(*widget.Node).IsReady())

	require.NoError(t, p.Dispatch("press"))
	assert.Equal(t, 1, p.refreshed)
}

// readyCounter counts Ready calls without the widget's once-only guard.
type readyCounter struct {
	*widget.Node
	calls int
}

func (r *readyCounter) Ready() { r.calls++ }

func TestBuild_ReadyOncePerNode(t *testing.T) {
	nodes := newNodes()
	var built []*readyCounter
	nodes.Register("counter", func(opts map[string]any) (domain.Node, error) {
		n := &readyCounter{Node: widget.New("counter", opts)}
		built = append(built, n)
		return n, nil
	})
	b := newBuilder(runtime.WithNodes(nodes))

	_, err := b.Build(context.Background(), map[string]any{
		"type": "counter",
		"header": map[string]any{"type": "counter"},
		"children": []any{
			map[string]any{"type": "counter", "subwidgets": []any{
				map[string]any{"type": "counter"},
			}},
		},
	})
	require.NoError(t, err)
	require.Len(t, built, 4)
	for i, n := range built {
		assert.Equal(t, 1, n.calls, "node %d", i)
	}
}

func TestBuild_FailedChildIsNotReady(t *testing.T) {
	nodes := newNodes()
	var first *widget.Node
	nodes.Register("first", func(opts map[string]any) (domain.Node, error) {
		first = widget.New("first", opts)
		return first, nil
	})
	b := newBuilder(runtime.WithNodes(nodes))

	_, err := b.Build(context.Background(), map[string]any{
		"type": "box",
		"children": []any{
			map[string]any{"type": "first", "children": []any{map[string]any{"type": "nope"}}},
		},
	})
	require.ErrorIs(t, err, domain.ErrNodeTypeNotRegistered)
	require.NotNil(t, first)
	assert.False(t, first.IsReady())
}

func TestBuild_ExactlyOneOutcome(t *testing.T) {
	tests := map[string]struct {
		desc    any
		wantErr error
	}{
		"ok":             {desc: map[string]any{"type": "label"}},
		"unregistered":   {desc: map[string]any{"type": "nope"}, wantErr: domain.ErrNodeTypeNotRegistered},
		"untyped":        {desc: map[string]any{"id": "x"}, wantErr: domain.ErrMalformedDescription},
		"not an object":  {desc: []any{1, 2}, wantErr: domain.ErrMalformedDescription},
		"missing url":    {desc: map[string]any{"type": "remote", "options": map[string]any{}}, wantErr: domain.ErrMissingURL},
		"bad child":      {desc: map[string]any{"type": "box", "children": []any{map[string]any{"type": "nope"}}}, wantErr: domain.ErrNodeTypeNotRegistered},
		"untyped child":  {desc: map[string]any{"type": "box", "children": []any{"label"}}, wantErr: domain.ErrMalformedDescription},
		"remote missing": {desc: map[string]any{"type": "remote", "options": map[string]any{"url": "gone"}}, wantErr: domain.ErrDescriptionNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var c hookCounter
			var perCallBuilt, perCallFailed int
			b := newBuilder(runtime.WithLifecycleHooks(c.hooks()))

			node, err := b.BuildWith(context.Background(), tt.desc,
				func(domain.Node) { perCallBuilt++ },
				func(error) { perCallFailed++ },
			)

			assert.Equal(t, 1, c.built+c.failed)
			assert.Equal(t, 1, perCallBuilt+perCallFailed)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, node)
				assert.Equal(t, 1, c.built)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, c.lastErr, tt.wantErr)
			assert.Nil(t, node, "a failed build never returns a partial tree")
		})
	}
}

func TestBuild_UnregisteredTypeIsBuildError(t *testing.T) {
	_, err := newBuilder().Build(context.Background(), map[string]any{"type": "nope", "id": "x"})

	var be *domain.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "nope", be.Type)
	assert.Equal(t, "x", be.ID)
}

func TestBuild_AttributesAndOptions(t *testing.T) {
	b := newBuilder()
	node, err := b.Build(context.Background(), map[string]any{
		"type":    "label",
		"id":      "x",
		"options": map[string]any{"n": "py::1 + 2", "plain": "text"},
		"title":   "py::self.id .. '!'",
		"broken":  "py::)(",
		"size":    12,
	})
	require.NoError(t, err)

	get := func(name string) any {
		v, _ := node.Attribute(name)
		return v
	}
	assert.Equal(t, "x", node.ID())
	assert.Equal(t, 3.0, get("n"))
	assert.Equal(t, "text", get("plain"))
	assert.Equal(t, "x!", get("title"))
	assert.Equal(t, "py::)(", get("broken"), "a failing expression keeps its literal")
	assert.Equal(t, 12, get("size"))
}

func TestBuild_NestedDescriptions(t *testing.T) {
	node, err := newBuilder().Build(context.Background(), map[string]any{
		"type":   "frame",
		"body":   map[string]any{"type": "label", "id": "inside"},
		"header": map[string]any{"type": "label", "id": "head"},
	})
	require.NoError(t, err)

	body, _ := node.Attribute("body")
	box, ok := body.(*widget.Node)
	require.True(t, ok, "an existing container attribute is kept")
	require.Len(t, box.Children(), 1)
	assert.Equal(t, "inside", box.Children()[0].ID())

	header, _ := node.Attribute("header")
	h, ok := header.(domain.Node)
	require.True(t, ok)
	assert.Equal(t, "head", h.ID())
}

func TestBuild_ChildrenOrder(t *testing.T) {
	var kids []any
	for _, id := range []string{"a", "b", "c", "d"} {
		kids = append(kids, map[string]any{"type": "label", "id": id})
	}

	for _, key := range []string{"children", "subwidgets"} {
		node, err := newBuilder().Build(context.Background(), map[string]any{"type": "box", key: kids})
		require.NoError(t, err)

		var ids []string
		for _, c := range node.(*widget.Node).Children() {
			ids = append(ids, c.ID())
		}
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids, key)
	}
}

func TestBuild_RemoteExtendAppliedOnce(t *testing.T) {
	res := newFakeResolver(map[string]domain.Description{
		"a": {"type": "label", "options": map[string]any{"text": "base", "color": "red"}},
	})
	var c hookCounter
	b := newBuilder(runtime.WithResolver(res), runtime.WithLifecycleHooks(c.hooks()))

	node, err := b.Build(context.Background(), map[string]any{
		"type":    "remote",
		"options": map[string]any{"url": "a", "params": map[string]any{"p": 1}},
		"extend":  map[string]any{"id": "ext", "options": map[string]any{"text": "over"}},
	})
	require.NoError(t, err)

	text, _ := node.Attribute("text")
	color, _ := node.Attribute("color")
	assert.Equal(t, "over", text)
	assert.Equal(t, "red", color)
	assert.Equal(t, "ext", node.ID())

	require.Len(t, res.opts, 1)
	assert.Equal(t, map[string]any{"p": 1}, res.opts[0].Params)
	assert.Equal(t, []string{"a"}, c.fetches)
}

func TestBuild_RemoteChain(t *testing.T) {
	res := newFakeResolver(map[string]domain.Description{
		"a": {
			"type":    "remote",
			"options": map[string]any{"url": "b"},
			"extend":  map[string]any{"options": map[string]any{"color": "blue"}},
		},
		"b": {"type": "label", "options": map[string]any{"text": "b"}},
	})
	b := newBuilder(runtime.WithResolver(res))

	node, err := b.Build(context.Background(), map[string]any{
		"type":    "remote",
		"options": map[string]any{"url": "a"},
		"extend":  map[string]any{"id": "outer"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, res.calls)
	color, _ := node.Attribute("color")
	assert.Equal(t, "blue", color)
	assert.Empty(t, node.ID(), "an overlay applies to its own hop only")
}

func TestBuild_RemoteHopLimit(t *testing.T) {
	res := newFakeResolver(map[string]domain.Description{
		"loop": {"type": "remote", "options": map[string]any{"url": "loop"}},
	})
	b := newBuilder(runtime.WithResolver(res), runtime.WithMaxRemoteHops(3))

	_, err := b.Build(context.Background(), map[string]any{"type": "urlwidget", "options": map[string]any{"url": "loop"}})
	assert.ErrorIs(t, err, domain.ErrRemoteChainTooLong)
	assert.Len(t, res.calls, 3)
}

func TestBuild_BindsSkipInvalidEntries(t *testing.T) {
	node, err := newBuilder().Build(context.Background(), map[string]any{
		"type": "panel",
		"binds": []any{
			map[string]any{"actiontype": "method", "method": "refresh"},
			map[string]any{"event": "press", "wid": "ghost", "actiontype": "method", "method": "refresh"},
			"not a bind",
			map[string]any{"event": "py::'pre' .. 'ss'", "actiontype": "method", "method": "refresh"},
		},
	})
	require.NoError(t, err, "bad binds never fail the build")

	p := node.(*panel)
	assert.Equal(t, 1, p.Bindings("press"))
	require.NoError(t, p.Dispatch("press"))
	assert.Equal(t, 1, p.refreshed)
}

func TestBuild_BindOnOtherNode(t *testing.T) {
	node, err := newBuilder().Build(context.Background(), map[string]any{
		"type": "panel",
		"children": []any{
			map[string]any{"type": "button", "id": "ok"},
		},
		"binds": []any{
			map[string]any{"wid": "ok", "event": "click", "actiontype": "method", "method": "refresh"},
		},
	})
	require.NoError(t, err)

	p := node.(*panel)
	button := p.Children()[0].(*widget.Node)
	assert.Equal(t, 0, p.Bindings("click"))
	assert.Equal(t, 1, button.Bindings("click"))

	require.NoError(t, button.Dispatch("click"))
	assert.Equal(t, 1, p.refreshed, "the action targets the declaring node by default")
}
