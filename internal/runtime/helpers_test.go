package runtime_test

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/resolver"
	"github.com/aretw0/arbor/pkg/widget"
)

type fakeHost struct {
	root    domain.Node
	overlay domain.Node
}

func (h *fakeHost) Root() domain.Node { return h.root }
func (h *fakeHost) AuthHeader() map[string]string { return nil }
func (h *fakeHost) FullscreenOverlay() domain.Node { return h.overlay }

type fakeResolver struct {
	mu    sync.Mutex
	descs map[string]domain.Description
	calls []string
	opts  []resolver.FetchOptions
}

func newFakeResolver(descs map[string]domain.Description) *fakeResolver {
	return &fakeResolver{descs: descs}
}

func (r *fakeResolver) Resolve(_ context.Context, address string, opts resolver.FetchOptions) (domain.Description, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, address)
	r.opts = append(r.opts, opts)
	d, ok := r.descs[address]
	if !ok {
		return nil, domain.ErrDescriptionNotFound
	}
	return d.Clone(), nil
}

// panel is a toolkit-style node that embeds the generic node and adds methods.
type panel struct {
	*widget.Node
	refreshed  int
	lastParams map[string]any
	lastArgs   []any
}

func (p *panel) Refresh() { p.refreshed++ }

func (p *panel) Save(params map[string]any) error {
	p.lastParams = params
	return nil
}

func (p *panel) Log(args ...any) { p.lastArgs = args }

func (p *panel) Explode() error { return errors.New("boom") }

func newNodes() *registry.Nodes {
	r := registry.NewNodes()
	widget.RegisterDefaults(r)
	r.Register("panel", func(opts map[string]any) (domain.Node, error) {
		return &panel{Node: widget.New("panel", opts)}, nil
	})
	r.Register("frame", func(opts map[string]any) (domain.Node, error) {
		n := widget.New("frame", opts)
		if err := n.SetAttribute("body", widget.New("box", nil)); err != nil {
			return nil, err
		}
		return n, nil
	})
	return r
}

func newBuilder(opts ...runtime.Option) *runtime.Builder {
	base := []runtime.Option{
		runtime.WithNodes(newNodes()),
		runtime.WithFunctions(registry.NewFunctions()),
		runtime.WithEvaluator(expr.New(expr.WithEnv(expr.NewEnv()))),
		runtime.WithResolver(newFakeResolver(nil)),
	}
	return runtime.NewBuilder(append(base, opts...)...)
}

type hookCounter struct {
	mu      sync.Mutex
	built   int
	failed  int
	fetches []string
	actions []*domain.ActionEvent
	lastErr error
}

func (c *hookCounter) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilt: func(context.Context, *domain.BuildEvent) {
			c.mu.Lock()
			c.built++
			c.mu.Unlock()
		},
		OnFailed: func(_ context.Context, e *domain.BuildEvent) {
			c.mu.Lock()
			c.failed++
			c.lastErr = e.Err
			c.mu.Unlock()
		},
		OnRemoteFetch: func(_ context.Context, e *domain.FetchEvent) {
			c.mu.Lock()
			c.fetches = append(c.fetches, e.URL)
			c.mu.Unlock()
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			c.mu.Lock()
			c.actions = append(c.actions, e)
			c.mu.Unlock()
		},
	}
}
