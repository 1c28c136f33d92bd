package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/bolt"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/widget"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("dir") {
		cfg.Library, _ = flags.GetString("dir")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("insecure") {
		cfg.Insecure, _ = flags.GetBool("insecure")
	}
	if flags.Changed("session-backend") {
		cfg.Session.Backend, _ = flags.GetString("session-backend")
	}
	if flags.Changed("max-remote-hops") {
		cfg.MaxRemoteHops, _ = flags.GetInt("max-remote-hops")
	}
	return cfg, cfg.Validate()
}

// openSessionStore opens the configured session backend. A non-empty namespace
// keeps its records apart from the client's (redis key prefix, bolt file name).
// Tokens are sealed when an encryption key is configured.
// A nil store means the in-memory default; the returned closer is never nil.
func openSessionStore(cfg config.Config, namespace string) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	store, locker, closer, err := openBackend(cfg, namespace)
	if err != nil || cfg.Session.EncryptionKey == "" {
		return store, locker, closer, err
	}

	enc, err := encryptionConfig(cfg.Session)
	if err != nil {
		_ = closer()
		return nil, nil, func() error { return nil }, err
	}
	if store == nil {
		store = memory.NewStore()
	}
	return middleware.Chain(store, middleware.NewEncryptionMiddleware(enc)), locker, closer, nil
}

func encryptionConfig(s config.Session) (middleware.EncryptionConfig, error) {
	var enc middleware.EncryptionConfig
	key, err := middleware.ParseKey(s.EncryptionKey)
	if err != nil {
		return enc, fmt.Errorf("session encryption_key: %w", err)
	}
	enc.ActiveKey = key
	for i, raw := range s.FallbackKeys {
		k, err := middleware.ParseKey(raw)
		if err != nil {
			return enc, fmt.Errorf("session fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, k)
	}
	return enc, nil
}

func openBackend(cfg config.Config, namespace string) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Session.Backend {
	case config.BackendRedis:
		prefix := cfg.Session.RedisPrefix
		if namespace != "" {
			prefix += namespace + ":"
		}
		store := redis.New(cfg.Session.RedisAddr, "", 0,
			redis.WithPrefix(prefix),
			redis.WithTTL(cfg.Session.TTL),
		)
		locker := redis.NewLocker(store.Client(), prefix+"lock:")
		return store, locker, store.Close, nil
	case config.BackendBolt:
		path := cfg.Session.BoltPath
		if namespace != "" {
			ext := filepath.Ext(path)
			path = strings.TrimSuffix(path, ext) + "-" + namespace + ext
		}
		store, err := bolt.Open(path)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, store.Close, nil
	default:
		return nil, nil, noop, nil
	}
}

// newNodes returns a registry holding the generic widget types.
func newNodes() *registry.Nodes {
	nodes := registry.NewNodes()
	widget.RegisterDefaults(nodes)
	return nodes
}

// newBlocks wires arbor from cfg. The returned cleanup releases every resource.
func newBlocks(cfg config.Config, logger *slog.Logger, extra ...arbor.Option) (*arbor.Blocks, func(), error) {
	store, locker, closeStore, err := openSessionStore(cfg, "")
	if err != nil {
		return nil, func() {}, fmt.Errorf("open session store: %w", err)
	}

	opts := []arbor.Option{
		arbor.WithNodes(newNodes()),
		arbor.WithLogger(logger),
		arbor.WithBaseURL(cfg.BaseURL),
		arbor.WithWorkers(cfg.Workers),
		arbor.WithTimeout(cfg.Timeout),
		arbor.WithInsecureSkipVerify(cfg.Insecure),
		arbor.WithMaxRemoteHops(cfg.MaxRemoteHops),
		arbor.WithEnv(cfg.Env),
	}
	if cfg.Library != "" {
		opts = append(opts, arbor.WithLibraryDir(cfg.Library))
	}
	if store != nil {
		opts = append(opts, arbor.WithSessionStore(store))
	}
	if locker != nil {
		opts = append(opts, arbor.WithLocker(locker))
	}
	opts = append(opts, arbor.WithLifecycleHooks(observability.Chain(
		observability.LogHooks(logger),
		observability.MetricsHooks(),
	)))

	blocks, err := arbor.New(append(opts, extra...)...)
	if err != nil {
		_ = closeStore()
		return nil, func() {}, err
	}
	cleanup := func() {
		blocks.Close()
		if err := closeStore(); err != nil {
			logger.Warn("closing session store failed", "err", err)
		}
	}
	return blocks, cleanup, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))
}
