package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]domain.SessionRecord
	mu   sync.Mutex
}

func (s *SlowStore) Put(ctx context.Context, rec domain.SessionRecord) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]domain.SessionRecord)
	}
	s.data[rec.Host] = rec
	return nil
}

func (s *SlowStore) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.data[host]; ok {
		return rec, nil
	}
	return domain.SessionRecord{}, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, host)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_TokenRoundTrip(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	host := "https://api.example.com:443"

	_, err := mgr.Token(ctx, host)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, mgr.SetToken(ctx, host, "sid=1"))
	token, err := mgr.Token(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, "sid=1", token)

	require.NoError(t, mgr.SetToken(ctx, host, "sid=2"))
	token, _ = mgr.Token(ctx, host)
	assert.Equal(t, "sid=2", token, "newer tokens overwrite")

	hosts, err := mgr.Hosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{host}, hosts)

	require.NoError(t, mgr.Forget(ctx, host))
	_, err = mgr.Token(ctx, host)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store)
	ctx := context.Background()
	host := "http://race.test:80"

	// Each update appends one character to the token; a lost update would shorten it.
	var wg sync.WaitGroup
	const writers = 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Update(ctx, host, func(rec domain.SessionRecord, found bool) (domain.SessionRecord, bool) {
				rec.Token += "x"
				return rec, true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	token, err := mgr.Token(ctx, host)
	require.NoError(t, err)
	assert.Len(t, token, writers)
}

func TestManager_UpdateKeepFalse(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	err := mgr.Update(ctx, "http://a", func(rec domain.SessionRecord, found bool) (domain.SessionRecord, bool) {
		assert.False(t, found)
		return rec, false
	})
	require.NoError(t, err)

	_, err = mgr.Token(ctx, "http://a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
	ttl      time.Duration
	err      error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.locked = append(f.locked, key)
	f.ttl = ttl
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocked = append(f.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &fakeLocker{}
	mgr := session.NewManager(memory.NewStore(),
		session.WithLocker(locker),
		session.WithLockTTL(5*time.Second),
	)

	require.NoError(t, mgr.SetToken(context.Background(), "http://h", "t"))
	assert.Equal(t, []string{"http://h"}, locker.locked)
	assert.Equal(t, []string{"http://h"}, locker.unlocked)
	assert.Equal(t, 5*time.Second, locker.ttl)

	locker.err = errors.New("redis down")
	err := mgr.SetToken(context.Background(), "http://h", "t2")
	assert.ErrorContains(t, err, "distributed lock")
}
