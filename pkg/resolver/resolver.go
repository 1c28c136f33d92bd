package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/client"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Address schemes.
const (
	SchemeFile  = "file://"
	SchemeHTTP  = "http://"
	SchemeHTTPS = "https://"
	SchemeLib   = "lib://"
)

// ErrNoLibrary is returned for lib:// addresses when no library is configured.
var ErrNoLibrary = errors.New("no description library configured")

// Fetcher performs the network calls of http(s) addresses. *client.Client satisfies it.
type Fetcher interface {
	Call(ctx context.Context, req client.Request, opts ...client.CallOption) (any, error)
}

// FetchOptions are the remaining options of a remote reference once "url" is removed.
// Keys other than method/params/files/headers are sent as params.
type FetchOptions struct {
	Method  string            `mapstructure:"method"`
	Params  map[string]any    `mapstructure:"params"`
	Files   map[string]string `mapstructure:"files"`
	Headers map[string]string `mapstructure:"headers"`
	Extra   map[string]any    `mapstructure:",remain"`
}

// ParseFetchOptions decodes remote reference options.
func ParseFetchOptions(opts map[string]any) (FetchOptions, error) {
	var fo FetchOptions
	if len(opts) == 0 {
		return fo, nil
	}
	if err := mapstructure.Decode(opts, &fo); err != nil {
		return fo, fmt.Errorf("%w: invalid fetch options: %v", domain.ErrMalformedDescription, err)
	}
	return fo, nil
}

// RequestParams returns Extra overlaid by Params.
func (o FetchOptions) RequestParams() map[string]any {
	if len(o.Extra) == 0 && len(o.Params) == 0 {
		return nil
	}
	out := make(map[string]any, len(o.Extra)+len(o.Params))
	for k, v := range o.Extra {
		out[k] = v
	}
	for k, v := range o.Params {
		out[k] = v
	}
	return out
}

// Resolver turns an address into a decoded description.
type Resolver struct {
	fetcher Fetcher
	library ports.DescriptionLoader
	baseURL string
	logger  *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithFetcher sets the network client used for http(s) addresses.
func WithFetcher(f Fetcher) Option {
	return func(r *Resolver) {
		r.fetcher = f
	}
}

// WithLibrary serves lib:// addresses from l.
func WithLibrary(l ports.DescriptionLoader) Option {
	return func(r *Resolver) {
		r.library = l
	}
}

// WithBaseURL sets the prefix of app-relative addresses.
func WithBaseURL(base string) Option {
	return func(r *Resolver) {
		r.baseURL = base
	}
}

// WithLogger sets the logger for the resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the configured base of app-relative addresses.
func (r *Resolver) BaseURL() string { return r.baseURL }

// Resolve fetches and decodes the description at address.
func (r *Resolver) Resolve(ctx context.Context, address string, opts FetchOptions) (domain.Description, error) {
	v, err := r.fetch(ctx, address, opts)
	if err != nil {
		return nil, err
	}
	desc, ok := toDescription(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s did not yield a typed object", domain.ErrMalformedDescription, address)
	}
	return desc, nil
}

func (r *Resolver) fetch(ctx context.Context, address string, opts FetchOptions) (any, error) {
	switch {
	case strings.HasPrefix(address, SchemeFile):
		return ReadFile(strings.TrimPrefix(address, SchemeFile))

	case strings.HasPrefix(address, SchemeHTTP), strings.HasPrefix(address, SchemeHTTPS):
		if r.fetcher == nil {
			return nil, fmt.Errorf("fetch %s: no network client configured", address)
		}
		method := opts.Method
		if method == "" {
			method = http.MethodGet
		}
		r.logger.Debug("fetching remote description", "url", address, "method", method)
		v, err := r.fetcher.Call(ctx, client.Request{
			URL:     address,
			Method:  method,
			Params:  opts.RequestParams(),
			Files:   opts.Files,
			Headers: opts.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", address, err)
		}
		return v, nil

	case strings.HasPrefix(address, SchemeLib):
		if r.library == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoLibrary, address)
		}
		id := strings.TrimPrefix(address, SchemeLib)
		v, err := r.library.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", address, err)
		}
		return v, nil

	default:
		if r.baseURL == "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoBaseURL, address)
		}
		joined := JoinURL(r.baseURL, address)
		if !hasScheme(joined) {
			return nil, fmt.Errorf("%w: base url %q has no known scheme", domain.ErrNoBaseURL, r.baseURL)
		}
		return r.fetch(ctx, joined, opts)
	}
}

func hasScheme(address string) bool {
	for _, s := range []string{SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeLib} {
		if strings.HasPrefix(address, s) {
			return true
		}
	}
	return false
}

// JoinURL appends a relative address to base with exactly one "/" between them.
func JoinURL(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

// ReadFile decodes a local description; .yaml/.yml use YAML, anything else JSON.
func ReadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data, filepath.Ext(path))
}

// Decode parses raw description bytes according to a file extension.
func Decode(data []byte, ext string) (any, error) {
	var v any
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDescription, err)
		}
	default:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDescription, err)
		}
	}
	return v, nil
}

func toDescription(v any) (domain.Description, bool) {
	switch t := v.(type) {
	case domain.Description:
		return domain.AsDescription(t)
	case map[string]any:
		return domain.AsDescription(t)
	default:
		return nil, false
	}
}
