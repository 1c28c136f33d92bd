package expr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	lua "github.com/yuin/gopher-lua"
)

// Prefix marks a string value as an expression. LuaPrefix is accepted as an alias.
const (
	Prefix    = "py::"
	LuaPrefix = "lua::"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 2 * time.Second

// Evaluator evaluates prefixed string values in a sandboxed Lua state.
// It is safe for concurrent use: every evaluation runs in its own state.
type Evaluator struct {
	env     *Env
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithEnv replaces the process-wide environment with a dedicated one.
func WithEnv(env *Env) Option {
	return func(e *Evaluator) {
		e.env = env
	}
}

// WithLogger sets the logger used to report fail-open evaluations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithTimeout bounds every evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// New creates an Evaluator bound to the global environment by default.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		env:     GlobalEnv(),
		logger:  logging.NewNop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Env returns the environment visible to expressions.
func (e *Evaluator) Env() *Env { return e.env }

// StripPrefix returns the expression body and whether s carried an expression prefix.
func StripPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, Prefix) {
		return s[len(Prefix):], true
	}
	if strings.HasPrefix(s, LuaPrefix) {
		return s[len(LuaPrefix):], true
	}
	return s, false
}

// Evaluate walks v and evaluates every prefixed string it finds.
// Lists and maps are copied; other values are returned as is.
func (e *Evaluator) Evaluate(v any, locals map[string]any) any {
	switch t := v.(type) {
	case string:
		return e.EvaluateString(t, locals)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = e.Evaluate(item, locals)
		}
		return out
	case map[string]any:
		return e.EvaluateMap(t, locals)
	case domain.Description:
		return domain.Description(e.EvaluateMap(t, locals))
	default:
		return v
	}
}

// EvaluateMap evaluates every value of m into a new map.
func (e *Evaluator) EvaluateMap(m map[string]any, locals map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = e.Evaluate(v, locals)
	}
	return out
}

// EvaluateString evaluates s when it carries the expression prefix.
// A failing expression is logged and the original string is returned.
func (e *Evaluator) EvaluateString(s string, locals map[string]any) any {
	src, ok := StripPrefix(s)
	if !ok {
		return s
	}
	v, err := e.Eval(src, locals)
	if err != nil {
		e.logger.Warn("expression evaluation failed, keeping literal", "expr", src, "err", err)
		return s
	}
	return v
}

// Eval evaluates an unprefixed expression and returns its value.
// Statement chunks are accepted too; their value is whatever they return.
func (e *Evaluator) Eval(src string, locals map[string]any) (any, error) {
	return e.run(src, locals, true)
}

// Exec runs a statement chunk (or a bare expression) for its side effects.
func (e *Evaluator) Exec(script string, locals map[string]any) error {
	_, err := e.run(script, locals, false)
	return err
}

func (e *Evaluator) run(src string, locals map[string]any, expressionFirst bool) (any, error) {
	L, err := newSandbox()
	if err != nil {
		return nil, err
	}
	defer L.Close()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	L.SetContext(ctx)

	for k, v := range e.env.Snapshot() {
		L.SetGlobal(k, toLua(L, v))
	}
	for k, v := range locals {
		L.SetGlobal(k, toLua(L, v))
	}

	fn, err := compile(L, src, expressionFirst)
	if err != nil {
		return nil, err
	}

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", src, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return fromLua(ret), nil
}

func compile(L *lua.LState, src string, expressionFirst bool) (*lua.LFunction, error) {
	asExpr := "return " + src
	first, second := asExpr, src
	if !expressionFirst {
		first, second = src, asExpr
	}
	fn, err := L.LoadString(first)
	if err == nil {
		return fn, nil
	}
	fn, err2 := L.LoadString(second)
	if err2 == nil {
		return fn, nil
	}
	return nil, fmt.Errorf("compile %q: %w", src, err)
}
