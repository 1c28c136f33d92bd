package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.SessionRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.SessionRecord),
	}
}

// Put stores or overwrites the record of rec.Host.
func (s *Store) Put(ctx context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.Host] = rec
	return nil
}

// Get retrieves the record of host.
func (s *Store) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[host]
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	return rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, host)
	return nil
}

// List returns the hosts with a session, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hosts := make([]string, 0, len(s.data))
	for host := range s.data {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts, nil
}
