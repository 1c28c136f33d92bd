package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and returns what it printed on stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func library(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"home.json": `{
			"type": "panel", "id": "home",
			"children": [
				{"type": "label", "id": "title", "text": "Welcome"},
				{"type": "remote", "options": {"url": "lib://footer"}}
			],
			"binds": [{"event": "refresh", "actiontype": "script", "script": "py::self.text = 'x'"}]
		}`,
		"footer.json": `{"type": "button", "id": "ok"}`,
	})
	return dir
}

func common(t *testing.T, dir string) []string {
	return []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--dir", dir}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--banner=false")
	require.NoError(t, err)
	assert.Equal(t, "arbor version "+arbor.Version+"\n", out)
}

func TestBuild_Outline(t *testing.T) {
	dir := library(t)
	out, err := run(t, append([]string{"build", "lib://home", "--format", "outline"}, common(t, dir)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "- **panel** `#home`")
	assert.Contains(t, out, "  - **label** `#title` (text=Welcome)")
	assert.Contains(t, out, "  - **button** `#ok`")
}

func TestBuild_FileAddressAsJSON(t *testing.T) {
	dir := library(t)
	address := "file://" + filepath.Join(dir, "home.json")
	out, err := run(t, append([]string{"build", address, "--format", "json"}, common(t, dir)...)...)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Equal(t, "panel", tree["type"])
	assert.Equal(t, []any{"refresh"}, tree["events"])
	assert.Len(t, tree["children"], 2)
}

func TestBuild_Errors(t *testing.T) {
	dir := library(t)
	_, err := run(t, append([]string{"build", "lib://missing", "--format", "outline"}, common(t, dir)...)...)
	assert.Error(t, err)

	_, err = run(t, append([]string{"build", "lib://home", "--format", "svg"}, common(t, dir)...)...)
	assert.ErrorContains(t, err, "unknown format")
}

func TestGraph(t *testing.T) {
	dir := library(t)
	out, err := run(t, append([]string{"graph", "lib://home", "--highlight", "title", "--focus", "ok"}, common(t, dir)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `n0(("panel#home <br/> ⚡ refresh"))`)
	assert.Contains(t, out, "class n1 highlighted;")
	assert.Contains(t, out, "class n2 focused;")
}

func TestValidate(t *testing.T) {
	dir := library(t)
	out, err := run(t, append([]string{"validate", "home"}, common(t, dir)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Library is valid!")

	broken := t.TempDir()
	testutils.WriteFiles(t, broken, map[string]string{
		"home.json": `{"type": "panel", "children": [{"type": "remote", "options": {"url": "lib://ghost"}}]}`,
	})
	_, err = run(t, append([]string{"validate", "home"}, common(t, broken)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing description or load error: 'ghost'")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"user=ada", "q=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "ada", "q": "a=b"}, params)

	_, err = parseParams([]string{"oops"})
	assert.Error(t, err)
}
