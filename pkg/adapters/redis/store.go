package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store and the locker.
const DefaultPrefix = "arbor:session:"

const (
	fieldToken   = "token"
	fieldUpdated = "updated_at"
)

// Store implements ports.SessionStore using one Redis hash per host and a set as index.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL expires host records that have not been refreshed for ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so a Locker can share the connection.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(host string) string {
	return s.prefix + "host:" + host
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Put stores the record and refreshes its TTL.
func (s *Store) Put(ctx context.Context, rec domain.SessionRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	pipe := s.client.TxPipeline()
	key := s.key(rec.Host)
	pipe.HSet(ctx, key, fieldToken, rec.Token, fieldUpdated, updated.Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.SAdd(ctx, s.indexKey(), rec.Host)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Get retrieves the record of host.
func (s *Store) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.key(host)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.SessionRecord{}, domain.ErrSessionNotFound
		}
		return domain.SessionRecord{}, fmt.Errorf("failed to get session from redis: %w", err)
	}
	token, ok := vals[fieldToken]
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}

	rec := domain.SessionRecord{Host: host, Token: token}
	if ts, ok := vals[fieldUpdated]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.UpdatedAt = parsed
		}
	}
	return rec, nil
}

// Delete removes the record of host.
func (s *Store) Delete(ctx context.Context, host string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(host))
	pipe.SRem(ctx, s.indexKey(), host)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns hosts with a live record, pruning expired ones from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	hosts, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	live := make([]string, 0, len(hosts))
	for _, host := range hosts {
		n, err := s.client.Exists(ctx, s.key(host)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session %s: %w", host, err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.indexKey(), host)
			continue
		}
		live = append(live, host)
	}
	return live, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
