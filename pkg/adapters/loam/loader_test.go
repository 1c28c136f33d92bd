package loam

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	tmpDir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, tmpDir, files)
	return New(loam.NewTypedRepository[DescriptionMetadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"home.json": `{"type": "panel", "id": "home", "children": [{"type": "label"}]}`,
		"about.md": `---
type: label
---
About this app`,
	})

	tests.DescriptionLoaderContractTest(t, loader, map[string]string{
		"home":  "panel",
		"about": "label",
	})
}

func TestLoader_Load_ShapesDescription(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"form.json": `{
  "type": "form",
  "id": "login",
  "options": {"title": "Sign in"},
  "binds": [{"event": "submit", "actiontype": "remote", "options": {"url": "/login"}}],
  "footer": {"type": "label"}
}`,
		"note.md": `---
type: label
options:
  size: 2
---
Hello **world**`,
	})
	ctx := context.Background()

	desc, err := loader.Load(ctx, "form")
	require.NoError(t, err)
	d := domain.Description(desc)
	assert.Equal(t, "form", d.Type())
	assert.Equal(t, "login", d.ID())
	assert.Equal(t, "Sign in", d.Options()["title"])
	require.Len(t, d.Binds(), 1)
	footer, ok := domain.AsDescription(desc["footer"])
	require.True(t, ok, "extra keys are kept as attributes")
	assert.Equal(t, "label", footer.Type())
	assert.NotContains(t, desc, ContentKey)

	desc, err = loader.Load(ctx, "note")
	require.NoError(t, err)
	assert.Equal(t, "Hello **world**", desc[ContentKey])
	_, hasID := desc["id"]
	assert.False(t, hasID, "file names are not node ids")
}

func TestLoader_Load_Errors(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"untyped.json": `{"id": "x"}`,
	})
	ctx := context.Background()

	_, err := loader.Load(ctx, "untyped")
	assert.ErrorIs(t, err, domain.ErrMalformedDescription)

	_, err = loader.Load(ctx, "missing")
	assert.Error(t, err)
}

func TestLoader_List_NormalizesIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"start.md":            "---\ntype: panel\n---\n",
		"widgets/header.json": `{"type": "label"}`,
		"choice.yaml":         "type: list\n",
	})

	ids, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"start", "widgets/header", "choice"}, ids)
}

func TestLoader_List_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md":   "---\ntype: label\n---\n",
		"foo.json": `{"type": "label"}`,
	})

	_, err := loader.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestNormalize(t *testing.T) {
	in := map[any]any{"a": []any{map[any]any{1: "one"}}}
	assert.Equal(t, map[string]any{"a": []any{map[string]any{"1": "one"}}}, normalize(in))
}

func TestLoader_Load_KeepsEveryKey(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"hello.json": `{"type": "label", "text": "hi", "size": 3, "subwidgets": [{"type": "icon"}]}`,
		"menu.yaml":  "type: list\ntitle: Menu\nheader:\n  type: label\n  text: top\n",
	})
	ctx := context.Background()

	desc, err := loader.Load(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", desc["text"])
	assert.EqualValues(t, 3, desc["size"])
	children := domain.Description(desc).Children()
	require.Len(t, children, 1, "subwidgets is read as the children alias")
	icon, ok := domain.AsDescription(children[0])
	require.True(t, ok)
	assert.Equal(t, "icon", icon.Type())

	desc, err = loader.Load(ctx, "menu")
	require.NoError(t, err)
	assert.Equal(t, "Menu", desc["title"])
	header, ok := domain.AsDescription(desc["header"])
	require.True(t, ok)
	assert.Equal(t, "top", header["text"])
}

func TestDescriptionMetadata_JSON(t *testing.T) {
	var meta DescriptionMetadata
	require.NoError(t, json.Unmarshal([]byte(`{"type": "panel", "id": "p", "options": {"a": 1}, "color": "red"}`), &meta))
	assert.Equal(t, "panel", meta.Type)
	assert.Equal(t, "p", meta.ID)
	assert.Equal(t, map[string]any{"a": float64(1)}, meta.Options)
	assert.Equal(t, map[string]any{"color": "red"}, meta.Attributes)

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "panel", "id": "p", "options": {"a": 1}, "color": "red"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"type": "panel", "options": "nope"}`), &meta))
}
