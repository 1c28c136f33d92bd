package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/aretw0/arbor/pkg/workers"
)

// SessionHeader carries the cached session token on requests to a known host.
const SessionHeader = "session"

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned for asynchronous calls after Close.
var ErrClosed = errors.New("client closed")

// AuthProvider supplies the headers sent to hosts without a session.
// ports.Host satisfies it.
type AuthProvider interface {
	AuthHeader() map[string]string
}

// Request describes one call.
type Request struct {
	URL    string
	Method string
	Params map[string]any
	// Files maps a multipart field name to a local file path.
	Files   map[string]string
	Headers map[string]string
	// Stream returns the open *http.Response instead of a decoded body. The caller closes it.
	Stream bool
}

var (
	defaultSessionsOnce sync.Once
	defaultSessions     *session.Manager
)

// DefaultSessions returns the process-wide session manager shared by clients
// created without WithSessions.
func DefaultSessions() *session.Manager {
	defaultSessionsOnce.Do(func() {
		defaultSessions = session.NewManager(memory.NewStore())
	})
	return defaultSessions
}

// Client issues HTTP calls with per-host session affinity.
type Client struct {
	http     *http.Client
	sessions *session.Manager
	auth     AuthProvider
	logger   *slog.Logger

	pool      *workers.Pool
	ownsPool  bool
	poolSize  int
	startPool sync.Once
	closed    bool
	mu        sync.Mutex

	insecure bool
	timeout  time.Duration
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithSessions sets the session manager.
func WithSessions(m *session.Manager) Option {
	return func(c *Client) {
		c.sessions = m
	}
}

// WithAuth sets the provider of first-contact headers.
func WithAuth(p AuthProvider) Option {
	return func(c *Client) {
		c.auth = p
	}
}

// WithPool runs asynchronous calls on p. The caller owns p's lifecycle.
func WithPool(p *workers.Pool) Option {
	return func(c *Client) {
		c.pool = p
	}
}

// WithWorkers sets the capacity of the pool the client creates for itself.
func WithWorkers(n int) Option {
	return func(c *Client) {
		c.poolSize = n
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithInsecureSkipVerify disables TLS certificate verification on the default http.Client.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		logger:   logging.NewNop(),
		poolSize: workers.DefaultCapacity,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessions == nil {
		c.sessions = DefaultSessions()
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
		}
		c.http = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	if c.pool == nil {
		c.pool = workers.New(c.poolSize, workers.WithLogger(c.logger), workers.WithName("client"))
		c.ownsPool = true
	}
	return c
}

// Sessions returns the session manager used by the client.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// Close stops the pool the client created for itself.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.ownsPool {
		c.pool.Stop()
	}
}

type callConfig struct {
	onSuccess func(any)
	onError   func(error)
}

// CallOption configures a single call.
type CallOption func(*callConfig)

// WithCallback makes the call asynchronous: it runs on the worker pool and its
// outcome is delivered to exactly one of onSuccess/onError.
func WithCallback(onSuccess func(result any), onError func(err error)) CallOption {
	return func(cfg *callConfig) {
		cfg.onSuccess = onSuccess
		cfg.onError = onError
	}
}

// Call issues req. Without WithCallback it runs synchronously and returns the
// interpreted body; with it, Call returns (nil, nil) once the task is queued.
func (c *Client) Call(ctx context.Context, req Request, opts ...CallOption) (any, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.onSuccess == nil && cfg.onError == nil {
		return c.do(ctx, req)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if c.ownsPool {
		c.startPool.Do(func() { c.pool.Start(context.WithoutCancel(ctx)) })
	}

	err := c.pool.Submit(workers.Task{
		Callee: func(ctx context.Context, _ ...any) (any, error) {
			return c.do(ctx, req)
		},
		OnSuccess: cfg.onSuccess,
		OnError:   cfg.onError,
	})
	if err != nil {
		return nil, fmt.Errorf("queue %s %s: %w", req.Method, req.URL, err)
	}
	return nil, nil
}

// Get issues a GET with params as query string.
func (c *Client) Get(ctx context.Context, url string, params map[string]any, opts ...CallOption) (any, error) {
	return c.Call(ctx, Request{URL: url, Method: http.MethodGet, Params: params}, opts...)
}

// Post issues a POST with params as form body.
func (c *Client) Post(ctx context.Context, url string, params map[string]any, opts ...CallOption) (any, error) {
	return c.Call(ctx, Request{URL: url, Method: http.MethodPost, Params: params}, opts...)
}

// Put issues a PUT with params as form body.
func (c *Client) Put(ctx context.Context, url string, params map[string]any, opts ...CallOption) (any, error) {
	return c.Call(ctx, Request{URL: url, Method: http.MethodPut, Params: params}, opts...)
}

// Delete issues a DELETE with params as form body.
func (c *Client) Delete(ctx context.Context, url string, params map[string]any, opts ...CallOption) (any, error) {
	return c.Call(ctx, Request{URL: url, Method: http.MethodDelete, Params: params}, opts...)
}

// Options issues an OPTIONS request.
func (c *Client) Options(ctx context.Context, url string, params map[string]any, opts ...CallOption) (any, error) {
	return c.Call(ctx, Request{URL: url, Method: http.MethodOptions, Params: params}, opts...)
}

func (c *Client) do(ctx context.Context, req Request) (any, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	host := HostPrefix(req.URL)

	httpReq, err := newRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(ctx, httpReq, host, req.Headers)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug("http call", "method", method, "url", req.URL, "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrNeedLogin, req.URL)
	case http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientPrivilege, req.URL)
	default:
		resp.Body.Close()
		return nil, &domain.HTTPError{Status: resp.StatusCode, URL: req.URL}
	}

	if token := sessionToken(resp); token != "" {
		if err := c.sessions.SetToken(ctx, host, token); err != nil {
			c.logger.Warn("failed to store session token", "host", host, "err", err)
		}
	}

	if req.Stream {
		return resp, nil
	}
	defer resp.Body.Close()
	return interpretBody(resp.Body)
}

// applyHeaders attaches the cached session of host, or the auth headers on first
// contact; explicit request headers are applied last.
func (c *Client) applyHeaders(ctx context.Context, r *http.Request, host string, explicit map[string]string) {
	token, err := c.sessions.Token(ctx, host)
	switch {
	case err == nil && token != "":
		r.Header.Set(SessionHeader, token)
	default:
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			c.logger.Warn("session lookup failed", "host", host, "err", err)
		}
		if c.auth != nil {
			for k, v := range c.auth.AuthHeader() {
				r.Header.Set(k, v)
			}
		}
	}
	for k, v := range explicit {
		r.Header.Set(k, v)
	}
}

// sessionToken returns the first ";" segment of the response's Set-Cookie header.
func sessionToken(resp *http.Response) string {
	raw := resp.Header.Get("Set-Cookie")
	if raw == "" {
		return ""
	}
	token, _, _ := strings.Cut(raw, ";")
	return strings.TrimSpace(token)
}

// HostPrefix returns the first three "/" segments of url, i.e. scheme://host:port.
func HostPrefix(url string) string {
	parts := strings.SplitN(url, "/", 4)
	if len(parts) < 3 {
		return url
	}
	return strings.Join(parts[:3], "/")
}
