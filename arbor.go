package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/client"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/expr"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/resolver"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/aretw0/arbor/pkg/workers"
)

// Version is the arbor release.
const Version = "0.4.0"

// Action is one dispatched bind: its owner, resolved target, spec and event arguments.
type Action = runtime.Action

// ActionFunc implements an actiontype.
type ActionFunc = runtime.ActionFunc

// Blocks is the high-level entry point of arbor. It wires the evaluator, the
// network client, the worker pool, the resolver and the tree builder.
type Blocks struct {
	builder  *runtime.Builder
	resolver *resolver.Resolver
	client   *client.Client
	pool     *workers.Pool
	eval     *expr.Evaluator
	sessions *session.Manager
	cancel   context.CancelFunc

	nodes      ports.NodeRegistry
	functions  ports.FunctionRegistry
	host       ports.Host
	confirmer  ports.Confirmer
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	library    ports.DescriptionLoader
	libraryDir string
	store      ports.SessionStore
	locker     ports.DistributedLocker
	baseURL    string
	workers    int
	timeout    time.Duration
	insecure   bool
	maxHops    int
	env        map[string]any
}

// Option configures Blocks.
type Option func(*Blocks)

// WithNodes sets the node registry (default: registry.DefaultNodes()).
func WithNodes(r ports.NodeRegistry) Option {
	return func(b *Blocks) {
		b.nodes = r
	}
}

// WithFunctions sets the function registry (default: registry.DefaultFunctions()).
func WithFunctions(r ports.FunctionRegistry) Option {
	return func(b *Blocks) {
		b.functions = r
	}
}

// WithHost gives arbor access to the application root, auth headers and overlay.
func WithHost(h ports.Host) Option {
	return func(b *Blocks) {
		b.host = h
	}
}

// WithConfirmer sets who confirms actions declaring "conform".
func WithConfirmer(c ports.Confirmer) Option {
	return func(b *Blocks) {
		b.confirmer = c
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Blocks) {
		b.hooks = hooks
	}
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Blocks) {
		b.logger = logger
	}
}

// WithLibrary serves lib:// addresses from l.
func WithLibrary(l ports.DescriptionLoader) Option {
	return func(b *Blocks) {
		b.library = l
	}
}

// WithLibraryDir serves lib:// addresses from a loam directory.
func WithLibraryDir(dir string) Option {
	return func(b *Blocks) {
		b.libraryDir = dir
	}
}

// WithSessionStore sets where per-host session tokens are kept.
// Without it, every Blocks shares the process-wide client.DefaultSessions.
func WithSessionStore(s ports.SessionStore) Option {
	return func(b *Blocks) {
		b.store = s
	}
}

// WithLocker serializes session updates across processes sharing the store.
func WithLocker(l ports.DistributedLocker) Option {
	return func(b *Blocks) {
		b.locker = l
	}
}

// WithBaseURL sets the prefix of app-relative addresses.
func WithBaseURL(base string) Option {
	return func(b *Blocks) {
		b.baseURL = base
	}
}

// WithWorkers sets the number of concurrent asynchronous calls.
func WithWorkers(n int) Option {
	return func(b *Blocks) {
		b.workers = n
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Blocks) {
		b.timeout = d
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(b *Blocks) {
		b.insecure = insecure
	}
}

// WithMaxRemoteHops bounds chains of remote references.
func WithMaxRemoteHops(n int) Option {
	return func(b *Blocks) {
		b.maxHops = n
	}
}

// WithEnv pre-populates the expression environment.
func WithEnv(env map[string]any) Option {
	return func(b *Blocks) {
		b.env = env
	}
}

// New wires every component and starts the worker pool. Call Close when done.
func New(opts ...Option) (*Blocks, error) {
	b := &Blocks{
		nodes:     registry.DefaultNodes(),
		functions: registry.DefaultFunctions(),
		logger:    logging.NewNop(),
		workers:   workers.DefaultCapacity,
		timeout:   client.DefaultTimeout,
		maxHops:   runtime.DefaultMaxRemoteHops,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.library == nil && b.libraryDir != "" {
		absPath, err := filepath.Abs(b.libraryDir)
		if err != nil {
			return nil, fmt.Errorf("invalid library path: %w", err)
		}
		lib, err := loamAdapter.Open(absPath)
		if err != nil {
			return nil, err
		}
		b.library = lib
	}
	switch {
	case b.store == nil && b.locker == nil:
		b.sessions = client.DefaultSessions()
	default:
		if b.store == nil {
			b.store = memory.NewStore()
		}
		sessionOpts := []session.Option{session.WithLogger(b.logger)}
		if b.locker != nil {
			sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
		}
		b.sessions = session.NewManager(b.store, sessionOpts...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.pool = workers.New(b.workers, workers.WithLogger(b.logger), workers.WithName("blocks"))
	b.pool.Start(ctx)

	clientOpts := []client.Option{
		client.WithSessions(b.sessions),
		client.WithPool(b.pool),
		client.WithLogger(b.logger),
		client.WithTimeout(b.timeout),
		client.WithInsecureSkipVerify(b.insecure),
	}
	if b.host != nil {
		clientOpts = append(clientOpts, client.WithAuth(b.host))
	}
	b.client = client.New(clientOpts...)

	env := expr.GlobalEnv()
	if len(b.env) > 0 {
		env.SetAll(b.env)
	}
	b.eval = expr.New(expr.WithEnv(env), expr.WithLogger(b.logger))

	resolverOpts := []resolver.Option{
		resolver.WithFetcher(b.client),
		resolver.WithBaseURL(b.baseURL),
		resolver.WithLogger(b.logger),
	}
	if b.library != nil {
		resolverOpts = append(resolverOpts, resolver.WithLibrary(b.library))
	}
	b.resolver = resolver.New(resolverOpts...)

	builderOpts := []runtime.Option{
		runtime.WithNodes(b.nodes),
		runtime.WithFunctions(b.functions),
		runtime.WithResolver(b.resolver),
		runtime.WithEvaluator(b.eval),
		runtime.WithLifecycleHooks(b.hooks),
		runtime.WithLogger(b.logger),
		runtime.WithMaxRemoteHops(b.maxHops),
	}
	if b.host != nil {
		builderOpts = append(builderOpts, runtime.WithHost(b.host))
	}
	if b.confirmer != nil {
		builderOpts = append(builderOpts, runtime.WithConfirmer(b.confirmer))
	}
	b.builder = runtime.NewBuilder(builderOpts...)

	return b, nil
}

// Build builds a node tree from a description (a map or domain.Description).
func (b *Blocks) Build(ctx context.Context, desc any) (domain.Node, error) {
	return b.builder.Build(ctx, desc)
}

// BuildWith builds desc and reports the outcome to exactly one of onBuilt or onFailed.
func (b *Blocks) BuildWith(ctx context.Context, desc any, onBuilt func(domain.Node), onFailed func(error)) (domain.Node, error) {
	return b.builder.BuildWith(ctx, desc, onBuilt, onFailed)
}

// BuildAddress builds the description stored at address (file://, http(s)://, lib:// or app-relative).
func (b *Blocks) BuildAddress(ctx context.Context, address string) (domain.Node, error) {
	return b.Build(ctx, RemoteDescription(address, nil))
}

// Resolve fetches the description stored at address without building it.
func (b *Blocks) Resolve(ctx context.Context, address string) (domain.Description, error) {
	return b.resolver.Resolve(ctx, address, resolver.FetchOptions{})
}

// Find resolves an identifier path starting at from (nil: the host root).
func (b *Blocks) Find(path string, from domain.Node) domain.Node {
	return b.builder.Finder().Find(path, from)
}

// Dispatch runs a bind spec as if its event fired on owner.
func (b *Blocks) Dispatch(ctx context.Context, owner domain.Node, spec domain.BindSpec, args ...any) error {
	return b.builder.Dispatcher().Dispatch(ctx, owner, spec, args...)
}

// RegisterAction adds or replaces an actiontype.
func (b *Blocks) RegisterAction(kind string, fn ActionFunc) {
	b.builder.Dispatcher().Register(kind, fn)
}

// Evaluate evaluates every prefixed expression in v.
func (b *Blocks) Evaluate(v any, locals map[string]any) any {
	return b.eval.Evaluate(v, locals)
}

// Client returns the network client.
func (b *Blocks) Client() *client.Client { return b.client }

// Sessions returns the per-host session manager.
func (b *Blocks) Sessions() *session.Manager { return b.sessions }

// Library returns the description library, or nil.
func (b *Blocks) Library() ports.DescriptionLoader { return b.library }

// Watch returns a channel of changed description ids when the library supports it.
func (b *Blocks) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := b.library.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current library does not support watching")
}

// Inventory lists what descriptions can refer to.
type Inventory struct {
	NodeTypes   []string `json:"node_types"`
	Functions   []string `json:"functions"`
	ActionTypes []string `json:"action_types"`
}

type namer interface {
	Names() []string
}

// Inspect reports the registered node types, functions and action types.
// Registries that cannot enumerate themselves yield no names.
func (b *Blocks) Inspect() Inventory {
	var inv Inventory
	if n, ok := b.nodes.(namer); ok {
		inv.NodeTypes = n.Names()
	}
	if n, ok := b.functions.(namer); ok {
		inv.Functions = n.Names()
	}
	inv.ActionTypes = b.builder.Dispatcher().Kinds()
	return inv
}

// Close stops the worker pool after running tasks finish.
func (b *Blocks) Close() {
	b.client.Close()
	b.pool.Stop()
	b.cancel()
}

// RemoteDescription returns a remote reference to address with the given fetch options.
func RemoteDescription(address string, options map[string]any) domain.Description {
	opts := make(map[string]any, len(options)+1)
	for k, v := range options {
		opts[k] = v
	}
	opts[domain.KeyURL] = address
	return domain.Description{
		domain.KeyType:    domain.TypeRemote,
		domain.KeyOptions: opts,
	}
}
