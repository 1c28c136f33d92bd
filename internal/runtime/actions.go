package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
)

// Action is one invocation of a bound action.
type Action struct {
	// Owner is the node whose description declared the bind.
	Owner domain.Node
	// Target is the resolved node the action applies to (nil for "multiple").
	Target domain.Node
	Spec   domain.BindSpec
	Args   []any
}

// ActionFunc implements one actiontype.
type ActionFunc func(ctx context.Context, a Action) error

// Dispatcher runs bound actions through a table keyed by actiontype.
type Dispatcher struct {
	b *Builder

	mu    sync.RWMutex
	table map[string]ActionFunc
}

func newDispatcher(b *Builder) *Dispatcher {
	d := &Dispatcher{b: b, table: make(map[string]ActionFunc)}
	d.Register(domain.ActionBlocks, d.blocks)
	d.Register(domain.ActionRemote, d.remote)
	d.Register(domain.ActionURLWidget, d.remote)
	d.Register(domain.ActionRegisteredFunction, d.registeredFunction)
	d.Register(domain.ActionRegistedFunction, d.registeredFunction)
	d.Register(domain.ActionScript, d.script)
	d.Register(domain.ActionMethod, d.method)
	d.Register(domain.ActionDispatch, d.event)
	d.Register(domain.ActionMultiple, d.multiple)
	return d
}

// Register adds or replaces the implementation of an actiontype.
func (d *Dispatcher) Register(kind string, fn ActionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table[strings.ToLower(kind)] = fn
}

// Kinds returns the registered actiontypes in sorted order.
func (d *Dispatcher) Kinds() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]string, 0, len(d.table))
	for k := range d.table {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Dispatch runs the action described by spec on behalf of owner.
// Every failure is logged; the error is also returned for callers that care.
func (d *Dispatcher) Dispatch(ctx context.Context, owner domain.Node, spec domain.BindSpec, args ...any) error {
	kind := strings.ToLower(spec.ActionType)
	logger := d.b.logger.With("actiontype", kind, "event", spec.Event)

	d.mu.RLock()
	fn, ok := d.table[kind]
	d.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %q", domain.ErrUnknownAction, spec.ActionType)
		logger.Warn("action skipped", "err", err)
		d.emit(ctx, spec, err)
		return err
	}

	if len(spec.Conform) > 0 && d.b.confirmer != nil {
		proceed, err := d.b.confirmer.Confirm(ctx, spec.Conform)
		if err != nil {
			logger.Warn("confirmation failed", "err", err)
			d.emit(ctx, spec, err)
			return err
		}
		if !proceed {
			logger.Debug("action declined")
			return nil
		}
	}

	a := Action{Owner: owner, Spec: spec, Args: args}
	if kind != domain.ActionMultiple {
		a.Target = d.b.finder.Find(spec.TargetNode(), owner)
		if a.Target == nil && kind == domain.ActionScript {
			logger.Debug("script target not found, running with nil self", "target", spec.TargetNode())
		} else if a.Target == nil {
			err := fmt.Errorf("%w: %q", domain.ErrTargetNotFound, spec.TargetNode())
			logger.Warn("action skipped", "err", err)
			d.emit(ctx, spec, err)
			return err
		}
	}

	err := fn(ctx, a)
	if err != nil {
		logger.Warn("action failed", "err", err)
	}
	d.emit(ctx, spec, err)
	return err
}

func (d *Dispatcher) emit(ctx context.Context, spec domain.BindSpec, err error) {
	if d.b.hooks.OnAction == nil {
		return
	}
	d.b.hooks.OnAction(ctx, &domain.ActionEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventAction},
		ActionType: spec.ActionType,
		Event:      spec.Event,
		Err:        err,
	})
}

// actionData pulls the data node's value, remaps it, then overlays the explicit params.
func (d *Dispatcher) actionData(a Action) map[string]any {
	var data map[string]any
	if id := a.Spec.DataWidget; id != "" {
		n := d.b.finder.Find(id, a.Owner)
		switch v := n.(type) {
		case nil:
			d.b.logger.Warn("data node not found", "wid", id, "err", domain.ErrTargetNotFound)
		case domain.Valuer:
			data = RemapKeys(v.GetValue(), a.Spec.KeyMapping)
		default:
			d.b.logger.Warn("data node has no value", "wid", id)
		}
	}
	return MergeParams(data, a.Spec.Params)
}

func (d *Dispatcher) blocks(ctx context.Context, a Action) error {
	desc, ok := domain.AsDescription(a.Spec.Options)
	if !ok {
		return fmt.Errorf("%w: blocks options must describe a node", domain.ErrMalformedDescription)
	}
	desc = desc.Clone()
	desc[domain.KeyOptions] = MergeParams(desc.Options(), d.actionData(a))
	return d.place(ctx, a, desc)
}

func (d *Dispatcher) remote(ctx context.Context, a Action) error {
	opts := domain.CloneMap(a.Spec.Options)
	if opts == nil {
		opts = make(map[string]any)
	}
	base, _ := opts["params"].(map[string]any)
	var eventParams map[string]any
	if len(a.Args) > 0 {
		eventParams, _ = asMap(a.Args[0])
	}
	opts["params"] = MergeParams(base, eventParams, d.actionData(a))

	desc := domain.Description{
		domain.KeyType:    domain.TypeRemote,
		domain.KeyOptions: opts,
	}
	if ext, ok := a.Spec.Rest[domain.KeyExtend].(map[string]any); ok {
		desc[domain.KeyExtend] = ext
	}
	return d.place(ctx, a, desc)
}

// place builds desc and puts it under the target according to the bind's mode.
func (d *Dispatcher) place(ctx context.Context, a Action, desc domain.Description) error {
	node, err := d.b.Build(ctx, desc)
	if err != nil {
		return err
	}
	switch mode := a.Spec.PlacementMode(); mode {
	case domain.ModeReplace:
		c, ok := a.Target.(domain.Container)
		if !ok {
			return fmt.Errorf("replace needs a container target, got %T", a.Target)
		}
		c.ClearChildren()
	case domain.ModeAppend:
	default:
		return fmt.Errorf("unknown placement mode %q", mode)
	}
	return a.Target.AddChild(node)
}

func (d *Dispatcher) registeredFunction(_ context.Context, a Action) error {
	fn, ok := d.b.functions.Get(a.Spec.RFName)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrFunctionNotFound, a.Spec.RFName)
	}
	return fn(a.Target, a.Args, d.actionData(a))
}

// script errors are logged and never returned. Data values shadow self and
// args; a missing target leaves self nil.
func (d *Dispatcher) script(_ context.Context, a Action) error {
	src := a.Spec.Script
	if stripped, ok := expr.StripPrefix(src); ok {
		src = stripped
	}
	locals := map[string]any{"self": a.Target, "args": a.Args}
	for k, v := range d.actionData(a) {
		locals[k] = v
	}
	if err := d.b.eval.Exec(src, locals); err != nil {
		d.b.logger.Warn("script failed", "event", a.Spec.Event, "err", err)
	}
	return nil
}

func (d *Dispatcher) method(_ context.Context, a Action) error {
	kwargs := MergeParams(a.Spec.Options, d.actionData(a))
	return InvokeMethod(a.Target, a.Spec.Method, a.Args, kwargs)
}

// event failures are logged and never returned.
func (d *Dispatcher) event(_ context.Context, a Action) error {
	name := a.Spec.DispatchEvent
	if name == "" {
		d.b.logger.Warn("event action has no dispatch_event", "err", domain.ErrMissingEvent)
		return nil
	}
	if err := a.Target.Dispatch(name, d.actionData(a)); err != nil {
		d.b.logger.Warn("event dispatch failed", "dispatch_event", name, "err", err)
	}
	return nil
}

// multiple runs its sub-actions in order. They inherit the bind node, event and
// target of the parent action; their failures are logged by Dispatch.
func (d *Dispatcher) multiple(ctx context.Context, a Action) error {
	for i, raw := range a.Spec.Actions {
		sub, err := DecodeBind(raw)
		if err != nil {
			d.b.logger.Warn("invalid sub-action, skipping", "index", i, "err", err)
			continue
		}
		if sub.Wid == "" && sub.TargetID == "" {
			sub.Wid, sub.TargetID = a.Spec.Wid, a.Spec.TargetID
		}
		if sub.Event == "" {
			sub.Event = a.Spec.Event
		}
		if sub.Target == "" {
			sub.Target = a.Spec.Target
		}
		_ = d.Dispatch(ctx, a.Owner, sub, a.Args...)
	}
	return nil
}
