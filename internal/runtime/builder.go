package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/resolver"
	"github.com/mitchellh/mapstructure"
)

// DefaultMaxRemoteHops bounds remote reference chains.
const DefaultMaxRemoteHops = 16

const (
	bindScriptKey  = "script"
	bindActionsKey = "actions"
)

// Evaluator evaluates dynamic values. *expr.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(v any, locals map[string]any) any
	Exec(script string, locals map[string]any) error
}

// DescriptionResolver fetches the target of a remote reference. *resolver.Resolver satisfies it.
type DescriptionResolver interface {
	Resolve(ctx context.Context, address string, opts resolver.FetchOptions) (domain.Description, error)
}

// Builder turns descriptions into node trees and wires their binds.
type Builder struct {
	nodes     ports.NodeRegistry
	functions ports.FunctionRegistry
	resolver  DescriptionResolver
	eval      Evaluator
	host      ports.Host
	confirmer ports.Confirmer
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	maxHops   int

	finder     *Finder
	dispatcher *Dispatcher
}

// Option configures the Builder.
type Option func(*Builder)

// WithNodes sets the node registry (default: the process-wide one).
func WithNodes(r ports.NodeRegistry) Option {
	return func(b *Builder) {
		b.nodes = r
	}
}

// WithFunctions sets the function registry (default: the process-wide one).
func WithFunctions(r ports.FunctionRegistry) Option {
	return func(b *Builder) {
		b.functions = r
	}
}

// WithResolver sets the resolver used for remote references.
func WithResolver(r DescriptionResolver) Option {
	return func(b *Builder) {
		b.resolver = r
	}
}

// WithEvaluator sets the expression evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(b *Builder) {
		b.eval = e
	}
}

// WithHost sets the application accessor used by identifier resolution.
func WithHost(h ports.Host) Option {
	return func(b *Builder) {
		b.host = h
	}
}

// WithConfirmer asks before running actions declared with "conform".
func WithConfirmer(c ports.Confirmer) Option {
	return func(b *Builder) {
		b.confirmer = c
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Builder) {
		b.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMaxRemoteHops bounds remote reference chains; non-positive values keep the default.
func WithMaxRemoteHops(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxHops = n
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		nodes:     registry.DefaultNodes(),
		functions: registry.DefaultFunctions(),
		resolver:  resolver.New(),
		eval:      expr.New(),
		logger:    logging.NewNop(),
		maxHops:   DefaultMaxRemoteHops,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.finder = NewFinder(b.host)
	b.dispatcher = newDispatcher(b)
	return b
}

// Finder returns the identifier resolver bound to the builder's host.
func (b *Builder) Finder() *Finder { return b.finder }

// Dispatcher returns the action dispatcher bound to the builder.
func (b *Builder) Dispatcher() *Dispatcher { return b.dispatcher }

// Build builds desc and reports the outcome to the lifecycle hooks exactly once.
func (b *Builder) Build(ctx context.Context, desc any) (domain.Node, error) {
	return b.BuildWith(ctx, desc, nil, nil)
}

// BuildWith is Build with per-call listeners; exactly one of onBuilt/onFailed runs.
func (b *Builder) BuildWith(ctx context.Context, desc any, onBuilt func(domain.Node), onFailed func(error)) (domain.Node, error) {
	node, typ, err := b.buildTop(ctx, desc)
	if err != nil {
		b.logger.Warn("build failed", "type", typ, "err", err)
		if b.hooks.OnFailed != nil {
			b.hooks.OnFailed(ctx, &domain.BuildEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFailed},
				NodeType:  typ,
				Err:       err,
			})
		}
		if onFailed != nil {
			onFailed(err)
		}
		return nil, err
	}

	if b.hooks.OnBuilt != nil {
		b.hooks.OnBuilt(ctx, &domain.BuildEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventBuilt},
			NodeType:  typ,
			Node:      node,
		})
	}
	if onBuilt != nil {
		onBuilt(node)
	}
	markReady(node)
	return node, nil
}

// markReady notifies a node that it and its subtree are built.
func markReady(n domain.Node) {
	if r, ok := n.(domain.Readier); ok {
		r.Ready()
	}
}

func (b *Builder) buildTop(ctx context.Context, raw any) (node domain.Node, typ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			node = nil
			err = fmt.Errorf("%w: panic while building: %v", domain.ErrMalformedDescription, r)
		}
	}()
	desc, ok := domain.AsDescription(raw)
	if !ok {
		return nil, "", fmt.Errorf("%w: expected an object with a type", domain.ErrMalformedDescription)
	}
	typ = desc.Type()
	node, err = b.build(ctx, desc)
	return node, typ, err
}

// build resolves remote references, then builds the concrete node and its subtree.
func (b *Builder) build(ctx context.Context, desc domain.Description) (domain.Node, error) {
	desc, err := b.followRemote(ctx, desc)
	if err != nil {
		return nil, err
	}

	typ := desc.Type()
	ctor, ok := b.nodes.Get(typ)
	if !ok {
		return nil, &domain.BuildError{Type: typ, ID: desc.ID(), Err: domain.ErrNodeTypeNotRegistered}
	}

	opts := evaluateMap(b.eval, desc.Options(), nil)
	node, err := ctor(opts)
	if err != nil {
		return nil, &domain.BuildError{Type: typ, ID: desc.ID(), Err: err}
	}
	if node == nil {
		return nil, &domain.BuildError{Type: typ, ID: desc.ID(), Err: fmt.Errorf("constructor returned nil")}
	}

	if id := desc.ID(); id != "" {
		node.SetID(id)
	}

	if err := b.buildAttributes(ctx, node, desc); err != nil {
		return nil, &domain.BuildError{Type: typ, ID: desc.ID(), Err: err}
	}
	if err := b.buildChildren(ctx, node, desc); err != nil {
		return nil, &domain.BuildError{Type: typ, ID: desc.ID(), Err: err}
	}
	b.buildBinds(ctx, node, desc)

	return node, nil
}

// followRemote replaces remote references by the descriptions they point to,
// applying each hop's extend overlay right after its fetch.
func (b *Builder) followRemote(ctx context.Context, desc domain.Description) (domain.Description, error) {
	for hop := 0; desc.IsRemote(); hop++ {
		if hop >= b.maxHops {
			return nil, fmt.Errorf("%w: more than %d hops", domain.ErrRemoteChainTooLong, b.maxHops)
		}

		opts := evaluateMap(b.eval, desc.Options(), nil)
		url, _ := opts[domain.KeyURL].(string)
		if url == "" {
			return nil, domain.ErrMissingURL
		}
		delete(opts, domain.KeyURL)

		fo, err := resolver.ParseFetchOptions(opts)
		if err != nil {
			return nil, err
		}
		fetched, err := b.resolver.Resolve(ctx, url, fo)
		if err != nil {
			return nil, err
		}
		if b.hooks.OnRemoteFetch != nil {
			b.hooks.OnRemoteFetch(ctx, &domain.FetchEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRemoteFetch},
				URL:       url,
				Hop:       hop + 1,
			})
		}
		b.logger.Debug("remote description fetched", "url", url, "hop", hop+1)

		if ext := desc.Extend(); len(ext) > 0 {
			fetched = domain.Description(DeepMerge(fetched, ext))
		}
		if fetched.Type() == "" {
			return nil, fmt.Errorf("%w: %s has no type after extend", domain.ErrMalformedDescription, url)
		}
		desc = fetched
	}
	return desc, nil
}

// buildAttributes sets every non-reserved key. Nested descriptions are built and
// either attached or, when the existing attribute is a container, added to it.
func (b *Builder) buildAttributes(ctx context.Context, node domain.Node, desc domain.Description) error {
	keys := make([]string, 0, len(desc))
	for k := range desc {
		if !domain.IsReserved(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	locals := map[string]any{"self": node}
	for _, key := range keys {
		val := desc[key]
		if sub, ok := domain.AsDescription(val); ok {
			child, err := b.build(ctx, sub)
			if err != nil {
				return fmt.Errorf("attribute %s: %w", key, err)
			}
			if existing, ok := node.Attribute(key); ok {
				if c, ok := existing.(domain.Container); ok {
					if err := c.AddChild(child); err != nil {
						return fmt.Errorf("attribute %s: %w", key, err)
					}
					markReady(child)
					continue
				}
			}
			if err := node.SetAttribute(key, child); err != nil {
				return fmt.Errorf("attribute %s: %w", key, err)
			}
			markReady(child)
			continue
		}
		if err := node.SetAttribute(key, b.eval.Evaluate(val, locals)); err != nil {
			return fmt.Errorf("attribute %s: %w", key, err)
		}
	}
	return nil
}

func (b *Builder) buildChildren(ctx context.Context, node domain.Node, desc domain.Description) error {
	for i, raw := range desc.Children() {
		sub, ok := domain.AsDescription(raw)
		if !ok {
			return fmt.Errorf("child %d: %w", i, domain.ErrMalformedDescription)
		}
		child, err := b.build(ctx, sub)
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		if err := node.AddChild(child); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		markReady(child)
	}
	return nil
}

// buildBinds registers every well-formed bind. Bad binds are logged and skipped.
func (b *Builder) buildBinds(ctx context.Context, node domain.Node, desc domain.Description) {
	actionCtx := context.WithoutCancel(ctx)
	locals := map[string]any{"self": node}

	for i, raw := range desc.Binds() {
		m, ok := asMap(raw)
		if !ok {
			b.logger.Warn("bind is not an object, skipping", "id", node.ID(), "index", i)
			continue
		}
		spec, err := DecodeBind(b.evaluateBind(m, locals))
		if err != nil {
			b.logger.Warn("invalid bind, skipping", "id", node.ID(), "index", i, "err", err)
			continue
		}
		if spec.Event == "" {
			b.logger.Warn("bind missing event, skipping", "id", node.ID(), "index", i, "err", domain.ErrMissingEvent)
			continue
		}
		on := b.finder.Find(spec.BindNode(), node)
		if on == nil {
			b.logger.Warn("bind node not found, skipping",
				"wid", spec.BindNode(), "event", spec.Event, "err", domain.ErrTargetNotFound)
			continue
		}

		owner := node
		if err := on.Bind(spec.Event, func(_ domain.Node, args ...any) {
			_ = b.dispatcher.Dispatch(actionCtx, owner, spec, args...)
		}); err != nil {
			b.logger.Warn("bind failed", "wid", spec.BindNode(), "event", spec.Event, "err", err)
		}
	}
}

// DecodeBind decodes one bind entry.
func DecodeBind(m map[string]any) (domain.BindSpec, error) {
	var spec domain.BindSpec
	if err := mapstructure.Decode(m, &spec); err != nil {
		return spec, fmt.Errorf("%w: %v", domain.ErrMalformedDescription, err)
	}
	return spec, nil
}

// evaluateBind evaluates a bind's fields except script bodies, which run at dispatch time.
func (b *Builder) evaluateBind(m map[string]any, locals map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case bindScriptKey:
			out[k] = v
		case bindActionsKey:
			list, ok := v.([]any)
			if !ok {
				out[k] = b.eval.Evaluate(v, locals)
				continue
			}
			subs := make([]any, len(list))
			for i, item := range list {
				if sm, ok := asMap(item); ok {
					subs[i] = b.evaluateBind(sm, locals)
					continue
				}
				subs[i] = item
			}
			out[k] = subs
		default:
			out[k] = b.eval.Evaluate(v, locals)
		}
	}
	return out
}

func evaluateMap(e Evaluator, m map[string]any, locals map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out, ok := e.Evaluate(m, locals).(map[string]any)
	if !ok {
		return m
	}
	return out
}
