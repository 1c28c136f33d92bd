package expr

import "sync"

// Func is a host function callable from expressions.
type Func func(args ...any) (any, error)

// Env is a concurrency-safe namespace shared by every evaluation of an Evaluator.
type Env struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]any)}
}

var globalEnv = NewEnv()

// GlobalEnv returns the process-wide environment hosts pre-populate at startup.
func GlobalEnv() *Env { return globalEnv }

// Set binds name to value.
func (e *Env) Set(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
}

// SetAll binds every entry of values.
func (e *Env) SetAll(values map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range values {
		e.vars[k] = v
	}
}

// Get returns the value bound to name.
func (e *Env) Get(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[name]
	return v, ok
}

// Delete removes name.
func (e *Env) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// Snapshot returns a copy of the bindings.
func (e *Env) Snapshot() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
