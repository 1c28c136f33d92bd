package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/resolver"
)

// Rules is what a description may refer to.
type Rules struct {
	// Nodes rejects unregistered types when set.
	Nodes ports.NodeRegistry
	// ActionTypes rejects unknown actiontypes when non-empty.
	ActionTypes []string
}

// ValidateLibrary checks every description reachable from startID through
// lib:// references. An empty startID validates every description in lib.
func ValidateLibrary(ctx context.Context, lib ports.DescriptionLoader, rules Rules, startID string) error {
	queue := []string{startID}
	if startID == "" {
		ids, err := lib.List(ctx)
		if err != nil {
			return fmt.Errorf("list library: %w", err)
		}
		queue = ids
	}

	kinds := make(map[string]bool, len(rules.ActionTypes))
	for _, k := range rules.ActionTypes {
		kinds[strings.ToLower(k)] = true
	}

	visited := make(map[string]bool)
	var errors []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		raw, err := lib.Load(ctx, id)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Missing description or load error: '%s'", id))
			continue
		}

		c := &checker{rules: rules, kinds: kinds, source: id}
		c.description(raw, "")
		errors = append(errors, c.problems...)

		for _, ref := range c.refs {
			if !visited[ref] {
				queue = append(queue, ref)
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}

type checker struct {
	rules    Rules
	kinds    map[string]bool
	source   string
	problems []string
	refs     []string
}

func (c *checker) report(path, format string, args ...any) {
	where := c.source
	if path != "" {
		where += ":" + path
	}
	c.problems = append(c.problems, fmt.Sprintf("'%s': %s", where, fmt.Sprintf(format, args...)))
}

func (c *checker) description(v any, path string) {
	desc, ok := domain.AsDescription(v)
	if !ok {
		c.report(path, "not a description with a type")
		return
	}

	if desc.IsRemote() {
		url, _ := desc.Options()[domain.KeyURL].(string)
		if url == "" {
			c.report(path, "remote reference without options.url")
		} else if strings.HasPrefix(url, resolver.SchemeLib) {
			c.refs = append(c.refs, strings.TrimPrefix(url, resolver.SchemeLib))
		}
		return
	}

	if c.rules.Nodes != nil {
		if _, ok := c.rules.Nodes.Get(desc.Type()); !ok {
			c.report(path, "type %q is not registered", desc.Type())
		}
	}

	keys := make([]string, 0, len(desc))
	for k := range desc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if domain.IsReserved(k) {
			continue
		}
		if _, ok := domain.AsDescription(desc[k]); ok {
			c.description(desc[k], join(path, k))
		}
	}

	for i, child := range desc.Children() {
		c.description(child, join(path, fmt.Sprintf("children[%d]", i)))
	}
	for i, b := range desc.Binds() {
		c.bind(b, join(path, fmt.Sprintf("binds[%d]", i)))
	}
}

func (c *checker) bind(v any, path string) {
	m, ok := v.(map[string]any)
	if !ok {
		c.report(path, "bind is not an object")
		return
	}
	spec, err := runtime.DecodeBind(m)
	if err != nil {
		c.report(path, "%v", err)
		return
	}
	if spec.Event == "" {
		c.report(path, "bind has no event")
	}
	c.action(spec, path)
}

func (c *checker) action(spec domain.BindSpec, path string) {
	kind := strings.ToLower(spec.ActionType)
	if len(c.kinds) > 0 && !c.kinds[kind] {
		c.report(path, "unknown actiontype %q", spec.ActionType)
		return
	}

	switch kind {
	case domain.ActionBlocks:
		c.description(spec.Options, join(path, "options"))
	case domain.ActionRemote, domain.ActionURLWidget:
		url, _ := spec.Options[domain.KeyURL].(string)
		if url == "" {
			c.report(path, "remote action without options.url")
		} else if strings.HasPrefix(url, resolver.SchemeLib) {
			c.refs = append(c.refs, strings.TrimPrefix(url, resolver.SchemeLib))
		}
	case domain.ActionRegisteredFunction, domain.ActionRegistedFunction:
		if spec.RFName == "" {
			c.report(path, "registeredfunction action without rfname")
		}
	case domain.ActionScript:
		if spec.Script == "" {
			c.report(path, "script action without script")
		}
	case domain.ActionMethod:
		if spec.Method == "" {
			c.report(path, "method action without method")
		}
	case domain.ActionDispatch:
		if spec.DispatchEvent == "" {
			c.report(path, "event action without dispatch_event")
		}
	case domain.ActionMultiple:
		for i, sub := range spec.Actions {
			subSpec, err := runtime.DecodeBind(sub)
			if err != nil {
				c.report(join(path, fmt.Sprintf("actions[%d]", i)), "%v", err)
				continue
			}
			c.action(subSpec, join(path, fmt.Sprintf("actions[%d]", i)))
		}
	}
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "." + seg
}
