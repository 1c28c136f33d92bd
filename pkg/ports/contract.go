package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	host := "https://contract-" + time.Now().Format("20060102150405") + ".test:8443"

	t.Run("Put and Get", func(t *testing.T) {
		rec := domain.SessionRecord{Host: host, Token: "sid=abc", UpdatedAt: time.Now().UTC()}
		require.NoError(t, store.Put(ctx, rec), "Put should not return error")

		loaded, err := store.Get(ctx, host)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, host, loaded.Host)
		assert.Equal(t, "sid=abc", loaded.Token)
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, domain.SessionRecord{Host: host, Token: "sid=first"}))
		require.NoError(t, store.Put(ctx, domain.SessionRecord{Host: host, Token: "sid=second"}))

		loaded, err := store.Get(ctx, host)
		require.NoError(t, err)
		assert.Equal(t, "sid=second", loaded.Token)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "http://missing-"+host)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, domain.SessionRecord{Host: host, Token: "sid=gone"}))
		require.NoError(t, store.Delete(ctx, host), "Delete should not return error")

		_, err := store.Get(ctx, host)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, host), "deleting a missing host is not an error")
	})

	t.Run("List", func(t *testing.T) {
		h1 := host + "-1"
		h2 := host + "-2"
		require.NoError(t, store.Put(ctx, domain.SessionRecord{Host: h1, Token: "a"}))
		require.NoError(t, store.Put(ctx, domain.SessionRecord{Host: h2, Token: "b"}))

		defer func() {
			_ = store.Delete(ctx, h1)
			_ = store.Delete(ctx, h2)
		}()

		hosts, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, hosts, h1)
		assert.Contains(t, hosts, h2)
	})
}
