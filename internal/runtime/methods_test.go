package runtime

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportName(t *testing.T) {
	tests := map[string]string{
		"refresh":       "Refresh",
		"refresh_all":   "RefreshAll",
		"load-more":     "LoadMore",
		"Refresh":       "Refresh",
		"_private_call": "PrivateCall",
	}
	for in, want := range tests {
		assert.Equal(t, want, exportName(in), in)
	}
}

type signatures struct {
	*widget.Node
	calls []string
}

func (s *signatures) Plain() { s.calls = append(s.calls, "plain") }
func (s *signatures) Both(args []any, p map[string]any) { s.calls = append(s.calls, "both") }
func (s *signatures) Strange(n int) { s.calls = append(s.calls, "strange") }
func (s *signatures) Multi() (int, error) { return 1, nil }

func TestInvokeMethod_Signatures(t *testing.T) {
	s := &signatures{Node: widget.New("box", nil)}

	require.NoError(t, InvokeMethod(s, "plain", nil, nil))
	require.NoError(t, InvokeMethod(s, "both", []any{1}, map[string]any{"a": 1}))
	require.NoError(t, InvokeMethod(s, "multi", nil, nil))
	assert.Equal(t, []string{"plain", "both"}, s.calls)

	err := InvokeMethod(s, "strange", nil, nil)
	assert.ErrorIs(t, err, domain.ErrMethodNotFound)
	assert.ErrorIs(t, InvokeMethod(s, "", nil, nil), domain.ErrMethodNotFound)
}
