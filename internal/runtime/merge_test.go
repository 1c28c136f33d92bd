package runtime_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	assert.Equal(t,
		map[string]any{"a": 1, "b": 3},
		runtime.DeepMerge(map[string]any{"a": 1, "b": 2}, map[string]any{"b": 3}))

	base := map[string]any{
		"type":    "label",
		"options": map[string]any{"text": "base", "color": "red"},
		"items":   []any{map[string]any{"x": 1, "y": 1}, "keep"},
	}
	overlay := map[string]any{
		"options": map[string]any{"text": "over"},
		"items":   []any{map[string]any{"y": 2}, "swap", "extra"},
		"id":      "new",
	}

	got := runtime.DeepMerge(base, overlay)
	assert.Equal(t, map[string]any{
		"type":    "label",
		"id":      "new",
		"options": map[string]any{"text": "over", "color": "red"},
		"items":   []any{map[string]any{"x": 1, "y": 2}, "swap", "extra"},
	}, got)

	assert.Equal(t, "base", base["options"].(map[string]any)["text"], "base is not mutated")
	assert.Len(t, overlay["items"], 3)

	assert.Equal(t, map[string]any{"a": 1}, runtime.DeepMerge(nil, map[string]any{"a": 1}))
	assert.Equal(t, map[string]any{"a": 1}, runtime.DeepMerge(map[string]any{"a": 1}, nil))
}

func TestDeepMerge_ScalarReplacesContainer(t *testing.T) {
	got := runtime.DeepMerge(
		map[string]any{"options": map[string]any{"a": 1}},
		map[string]any{"options": "none"},
	)
	assert.Equal(t, map[string]any{"options": "none"}, got)
}

func TestMergeParams_LaterLayersWin(t *testing.T) {
	data := map[string]any{"name": "from-data", "age": 30}
	params := map[string]any{"name": "explicit"}

	assert.Equal(t, map[string]any{"name": "explicit", "age": 30}, runtime.MergeParams(data, params))
	assert.Equal(t, map[string]any{}, runtime.MergeParams())
	assert.Equal(t, map[string]any{"age": 30, "name": "from-data"}, runtime.MergeParams(nil, data, nil))
}

func TestRemapKeys(t *testing.T) {
	data := map[string]any{"user_name": "ada", "age": 30}

	assert.Equal(t,
		map[string]any{"name": "ada", "age": 30},
		runtime.RemapKeys(data, map[string]string{"user_name": "name", "missing": "x"}))
	assert.Equal(t, data, runtime.RemapKeys(data, nil))
}
