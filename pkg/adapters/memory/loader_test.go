package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	loader := memory.NewLoader(map[string]string{
		"home":   `{"type": "panel", "children": []}`,
		"header": `{"type": "label", "options": {"text": "hi"}}`,
	})

	contract.DescriptionLoaderContractTest(t, loader, map[string]string{
		"home":   "panel",
		"header": "label",
	})
}

func TestNewFromDescriptions(t *testing.T) {
	loader, err := memory.NewFromDescriptions(map[string]domain.Description{
		"home": {"type": "panel", "id": "main"},
	})
	require.NoError(t, err)

	desc, err := loader.Load(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, "main", desc["id"])

	_, err = memory.NewFromDescriptions(map[string]domain.Description{"bad": {"id": "x"}})
	assert.ErrorIs(t, err, domain.ErrMalformedDescription)
}

func TestLoader_MalformedJSON(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"broken": `{"type": `})
	_, err := loader.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrMalformedDescription)

	_, err = loader.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDescriptionNotFound)
}
