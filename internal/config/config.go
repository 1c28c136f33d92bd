// Package config loads arbor's runtime configuration from arbor.yaml (or .json).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "arbor.yaml"

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Config is the runtime configuration.
type Config struct {
	BaseURL       string         `mapstructure:"base_url"`
	Workers       int            `mapstructure:"workers"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	Insecure      bool           `mapstructure:"insecure"`
	Library       string         `mapstructure:"library"`
	LogLevel      string         `mapstructure:"log_level"`
	MaxRemoteHops int            `mapstructure:"max_remote_hops"`
	Session       Session        `mapstructure:"session"`
	Env           map[string]any `mapstructure:"env"`
}

// Session selects where per-host session tokens are kept.
type Session struct {
	Backend     string        `mapstructure:"backend"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`
	BoltPath    string        `mapstructure:"bolt_path"`

	// EncryptionKey is a base64 AES-256 key sealing stored tokens. Empty disables encryption.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Workers:       4,
		Timeout:       30 * time.Second,
		LogLevel:      "info",
		MaxRemoteHops: 16,
		Session: Session{
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "arbor:session:",
			BoltPath:    "arbor-sessions.db",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode overlays raw onto cfg. Durations accept strings like "5s".
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxRemoteHops < 1 {
		return fmt.Errorf("max_remote_hops must be positive, got %d", c.MaxRemoteHops)
	}
	switch c.Session.Backend {
	case BackendMemory, BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.EncryptionKey == "" && len(c.Session.FallbackKeys) > 0 {
		return errors.New("session fallback_keys need an encryption_key")
	}
	return nil
}
