package registry_test

import (
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestNodes_RegisterAndGet(t *testing.T) {
	r := registry.NewNodes()

	_, ok := r.Get("label")
	assert.False(t, ok)

	r.Register("label", func(map[string]any) (domain.Node, error) { return nil, nil })
	r.Register("box", func(map[string]any) (domain.Node, error) { return nil, nil })

	_, ok = r.Get("label")
	assert.True(t, ok)
	assert.Equal(t, []string{"box", "label"}, r.Names())
}

func TestFunctions_Overwrite(t *testing.T) {
	r := registry.NewFunctions()
	var called string
	r.Register("f", func(domain.Node, []any, map[string]any) error { called = "first"; return nil })
	r.Register("f", func(domain.Node, []any, map[string]any) error { called = "second"; return nil })

	fn, ok := r.Get("f")
	assert.True(t, ok)
	assert.NoError(t, fn(nil, nil, nil))
	assert.Equal(t, "second", called)
	assert.Equal(t, []string{"f"}, r.Names())
}

func TestFunctions_ConcurrentAccess(t *testing.T) {
	r := registry.NewFunctions()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("f", func(domain.Node, []any, map[string]any) error { return nil })
		}()
		go func() {
			defer wg.Done()
			r.Get("f")
		}()
	}
	wg.Wait()
	_, ok := r.Get("f")
	assert.True(t, ok)
}

func TestDefaults_AreSingletons(t *testing.T) {
	assert.Same(t, registry.DefaultNodes(), registry.DefaultNodes())
	assert.Same(t, registry.DefaultFunctions(), registry.DefaultFunctions())
}
