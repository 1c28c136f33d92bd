package tests

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/ports"
)

// DescriptionLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.DescriptionLoader.
// expectedTypes maps every id present in the library to the "type" of its description.
func DescriptionLoaderContractTest(t *testing.T, loader ports.DescriptionLoader, expectedTypes map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for id, typ := range expectedTypes {
			desc, err := loader.Load(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", id, err)
			}
			if desc["type"] != typ {
				t.Errorf("type mismatch for %s. got %v, want %q", id, desc["type"], typ)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-description")
		if err == nil {
			t.Error("expected error for non-existent description, got nil")
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing descriptions: %v", err)
		}
		if len(ids) != len(expectedTypes) {
			t.Errorf("expected %d descriptions, got %d (%v)", len(expectedTypes), len(ids), ids)
		}

		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range expectedTypes {
			if !lookup[id] {
				t.Errorf("description %s missing from list", id)
			}
		}
	})
}
