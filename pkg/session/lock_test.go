package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Put(ctx context.Context, rec domain.SessionRecord) error { return nil }
func (m *MockStore) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	return domain.SessionRecord{}, domain.ErrSessionNotFound
}
func (m *MockStore) Delete(ctx context.Context, host string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)    { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		host := fmt.Sprintf("http://host-%d", i)
		_ = mgr.SetToken(ctx, host, "t")
		_ = mgr.Forget(ctx, host)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Forget", lockCount)
	}
}
