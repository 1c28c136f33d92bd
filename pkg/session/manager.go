package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed host lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes reads and writes of per-host session tokens.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks, keyed by host prefix

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL requested from the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(host) after unlocking.
func (m *Manager) acquire(host string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[host]
	if !exists {
		entry = &lockEntry{}
		m.locks[host] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[host]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, host)
	}
}

// Token returns the session token cached for host, or ErrSessionNotFound.
func (m *Manager) Token(ctx context.Context, host string) (string, error) {
	var token string
	err := m.WithLock(ctx, host, func(ctx context.Context) error {
		rec, err := m.store.Get(ctx, host)
		if err != nil {
			return err
		}
		token = rec.Token
		return nil
	})
	return token, err
}

// SetToken stores or overwrites the token of host.
func (m *Manager) SetToken(ctx context.Context, host, token string) error {
	return m.WithLock(ctx, host, func(ctx context.Context) error {
		return m.store.Put(ctx, domain.SessionRecord{
			Host:      host,
			Token:     token,
			UpdatedAt: m.now().UTC(),
		})
	})
}

// Update runs a read-modify-write of host's record under its lock.
// fn receives the current record (zero value and found=false when absent) and
// returns the record to store; returning keep=false leaves the store untouched.
func (m *Manager) Update(ctx context.Context, host string, fn func(rec domain.SessionRecord, found bool) (next domain.SessionRecord, keep bool)) error {
	return m.WithLock(ctx, host, func(ctx context.Context) error {
		rec, err := m.store.Get(ctx, host)
		found := err == nil
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to read session of %s: %w", host, err)
		}
		next, keep := fn(rec, found)
		if !keep {
			return nil
		}
		next.Host = host
		next.UpdatedAt = m.now().UTC()
		return m.store.Put(ctx, next)
	})
}

// Forget removes the session of host.
func (m *Manager) Forget(ctx context.Context, host string) error {
	return m.WithLock(ctx, host, func(ctx context.Context) error {
		return m.store.Delete(ctx, host)
	})
}

// Hosts delegates to the store.
func (m *Manager) Hosts(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the host.
func (m *Manager) WithLock(ctx context.Context, host string, fn func(context.Context) error) error {
	entry := m.acquire(host)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(host)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, host, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"host", host,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
