package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrStopped is returned by Submit after Stop and delivered to tasks dropped by Stop.
	ErrStopped = errors.New("worker pool stopped")
	// ErrTaskPanicked wraps a panic raised by a task's callee.
	ErrTaskPanicked = errors.New("task panicked")
	// ErrNilCallee is delivered when a task has no callee.
	ErrNilCallee = errors.New("task has no callee")
)

// DefaultCapacity is used when New receives a non-positive capacity.
const DefaultCapacity = 4

// Callee is the work a Task performs.
type Callee func(ctx context.Context, args ...any) (any, error)

// Task is one unit of work. Exactly one of OnSuccess/OnError is called once Callee returns.
type Task struct {
	Callee    Callee
	OnSuccess func(result any)
	OnError   func(err error)
	Args      []any
}

// Pool runs tasks with bounded concurrency, newest first.
type Pool struct {
	capacity int64
	sem      *semaphore.Weighted
	logger   *slog.Logger
	name     string

	mu      sync.Mutex
	cond    *sync.Cond
	stack   []Task
	started bool
	stopped bool

	cancel   context.CancelFunc
	loopDone chan struct{}
	running  sync.WaitGroup
}

// Option configures the Pool.
type Option func(*Pool)

// WithLogger sets the logger for the pool.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithName labels the pool's metrics.
func WithName(name string) Option {
	return func(p *Pool) {
		p.name = name
	}
}

// New creates a pool running at most capacity callees at once.
func New(capacity int, opts ...Option) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
		logger:   logging.NewNop(),
		name:     "default",
		loopDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capacity returns the maximum number of concurrently running callees.
func (p *Pool) Capacity() int { return int(p.capacity) }

// Start launches the dispatch loop. Tasks receive ctx; Stop does not cancel it.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.loop(loopCtx, context.WithoutCancel(ctx))
}

// Submit pushes a task on top of the stack.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.stack = append(p.stack, t)
	queuedTasks.WithLabelValues(p.name).Inc()
	p.cond.Signal()
	return nil
}

// Go is a shorthand for Submit with a callee and callbacks.
func (p *Pool) Go(callee Callee, onSuccess func(any), onError func(error), args ...any) error {
	return p.Submit(Task{Callee: callee, OnSuccess: onSuccess, OnError: onError, Args: args})
}

// Len returns the number of queued, not yet dispatched tasks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

// Stop halts dispatching, fails queued tasks with ErrStopped and waits for running ones.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	dropped := p.stack
	p.stack = nil
	started := p.started
	cancel := p.cancel
	p.cond.Broadcast()
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-p.loopDone
	}
	p.running.Wait()

	for _, t := range dropped {
		queuedTasks.WithLabelValues(p.name).Dec()
		completedTasks.WithLabelValues(p.name, outcomeDropped).Inc()
		p.deliverError(t, ErrStopped)
	}
}

func (p *Pool) loop(loopCtx, taskCtx context.Context) {
	defer close(p.loopDone)
	for {
		// A slot is held before popping so the newest task at that moment wins.
		if err := p.sem.Acquire(loopCtx, 1); err != nil {
			return
		}
		t, ok := p.next()
		if !ok {
			p.sem.Release(1)
			return
		}
		p.running.Add(1)
		go p.run(taskCtx, t)
	}
}

func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.stack) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return Task{}, false
	}
	last := len(p.stack) - 1
	t := p.stack[last]
	p.stack[last] = Task{}
	p.stack = p.stack[:last]
	queuedTasks.WithLabelValues(p.name).Dec()
	return t, true
}

func (p *Pool) run(ctx context.Context, t Task) {
	defer p.running.Done()
	defer p.sem.Release(1)

	runningTasks.WithLabelValues(p.name).Inc()
	defer runningTasks.WithLabelValues(p.name).Dec()

	result, err := p.call(ctx, t)
	if err != nil {
		completedTasks.WithLabelValues(p.name, outcomeError).Inc()
		p.deliverError(t, err)
		return
	}
	completedTasks.WithLabelValues(p.name, outcomeSuccess).Inc()
	p.deliverSuccess(t, result)
}

func (p *Pool) call(ctx context.Context, t Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	if t.Callee == nil {
		return nil, ErrNilCallee
	}
	return t.Callee(ctx, t.Args...)
}

func (p *Pool) deliverSuccess(t Task, result any) {
	if t.OnSuccess == nil {
		return
	}
	defer p.recoverCallback("on_success")
	t.OnSuccess(result)
}

func (p *Pool) deliverError(t Task, err error) {
	if t.OnError == nil {
		p.logger.Warn("task failed without error callback", "pool", p.name, "err", err)
		return
	}
	defer p.recoverCallback("on_error")
	t.OnError(err)
}

func (p *Pool) recoverCallback(kind string) {
	if r := recover(); r != nil {
		p.logger.Error("task callback panicked", "pool", p.name, "callback", kind, "panic", r)
	}
}
