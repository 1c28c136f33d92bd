package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/client"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth map[string]string

func (a staticAuth) AuthHeader() map[string]string { return a }

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	base := []client.Option{client.WithSessions(session.NewManager(memory.NewStore()))}
	c := client.New(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c
}

func TestClient_SessionAffinity(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Clone())
		mu.Unlock()
		if r.URL.Path == "/login" {
			w.Header().Set("Set-Cookie", "sid=abc123; Path=/; HttpOnly")
		}
		_, _ = io.WriteString(w, `{"status":"OK","data":"ok"}`)
	}))
	defer srv.Close()

	c := newClient(t, client.WithAuth(staticAuth{"Authorization": "Bearer first-contact"}))
	ctx := context.Background()

	_, err := c.Get(ctx, srv.URL+"/login", nil)
	require.NoError(t, err)
	_, err = c.Get(ctx, srv.URL+"/ui/home", nil)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "Bearer first-contact", seen[0].Get("Authorization"))
	assert.Empty(t, seen[0].Get(client.SessionHeader))

	assert.Equal(t, "sid=abc123", seen[1].Get(client.SessionHeader))
	assert.Empty(t, seen[1].Get("Authorization"), "session replaces the auth header")

	token, err := c.Sessions().Token(ctx, client.HostPrefix(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "sid=abc123", token)
}

func TestClient_StatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/401":
			w.WriteHeader(http.StatusUnauthorized)
		case "/403":
			w.WriteHeader(http.StatusForbidden)
		case "/500":
			w.WriteHeader(http.StatusInternalServerError)
		case "/418":
			w.WriteHeader(http.StatusTeapot)
		case "/201":
			w.Header().Set("Set-Cookie", "sid=nope")
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c := newClient(t)
	ctx := context.Background()

	_, err := c.Get(ctx, srv.URL+"/401", nil)
	assert.ErrorIs(t, err, domain.ErrNeedLogin)

	_, err = c.Get(ctx, srv.URL+"/403", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	for path, status := range map[string]int{"/500": 500, "/418": 418, "/201": 201} {
		_, err = c.Get(ctx, srv.URL+path, nil)
		var httpErr *domain.HTTPError
		require.True(t, errors.As(err, &httpErr), path)
		assert.Equal(t, status, httpErr.Status)
	}

	_, err = c.Sessions().Token(ctx, client.HostPrefix(srv.URL))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "only 200 responses establish a session")
}

func TestClient_BodyInterpretation(t *testing.T) {
	bodies := map[string]string{
		"/envelope": `{"status":"OK","data":{"type":"label"}}`,
		"/failed":   `{"status":"ERROR","message":"bad"}`,
		"/list":     `[1, 2]`,
		"/text":     `not json`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, bodies[r.URL.Path])
	}))
	defer srv.Close()

	c := newClient(t)
	ctx := context.Background()

	got, err := c.Get(ctx, srv.URL+"/envelope", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "label"}, got)

	got, err = c.Get(ctx, srv.URL+"/failed", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ERROR", "message": "bad"}, got)

	got, err = c.Get(ctx, srv.URL+"/list", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, got)

	got, err = c.Get(ctx, srv.URL+"/text", nil)
	require.NoError(t, err)
	assert.Equal(t, "not json", got)
}

func TestClient_ParamsEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `"`+r.URL.Query().Get("q")+`"`)
		default:
			require.NoError(t, r.ParseForm())
			_, _ = io.WriteString(w, `"`+r.Method+":"+r.PostForm.Get("name")+`"`)
		}
	}))
	defer srv.Close()

	c := newClient(t)
	ctx := context.Background()

	got, err := c.Get(ctx, srv.URL, map[string]any{"q": "tree"})
	require.NoError(t, err)
	assert.Equal(t, "tree", got)

	got, err = c.Post(ctx, srv.URL, map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "POST:ada", got)

	got, err = c.Put(ctx, srv.URL, map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "PUT:bob", got)
}

func TestClient_MultipartUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.txt")
	require.NoError(t, os.WriteFile(path, []byte("file-content"), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("avatar")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		_, _ = io.WriteString(w, `{"name":"`+hdr.Filename+`","content":"`+string(data)+`","user":"`+r.FormValue("user")+`"}`)
	}))
	defer srv.Close()

	c := newClient(t)
	got, err := c.Call(context.Background(), client.Request{
		URL:    srv.URL,
		Method: http.MethodPost,
		Params: map[string]any{"user": "ada"},
		Files:  map[string]string{"avatar": path},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "avatar.txt", "content": "file-content", "user": "ada"}, got)
}

func TestClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "chunked payload")
	}))
	defer srv.Close()

	c := newClient(t)
	got, err := c.Call(context.Background(), client.Request{URL: srv.URL, Stream: true})
	require.NoError(t, err)

	resp, ok := got.(*http.Response)
	require.True(t, ok)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "chunked payload", string(data))
}

func TestClient_AsyncCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"status":"OK","data":42}`)
	}))
	defer srv.Close()

	c := newClient(t, client.WithWorkers(2))
	ctx := context.Background()

	results := make(chan any, 1)
	errs := make(chan error, 1)

	got, err := c.Get(ctx, srv.URL+"/ok", nil, client.WithCallback(
		func(r any) { results <- r },
		func(err error) { errs <- err },
	))
	require.NoError(t, err)
	assert.Nil(t, got, "asynchronous calls return immediately")

	select {
	case r := <-results:
		assert.Equal(t, 42.0, r)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}

	_, err = c.Get(ctx, srv.URL+"/fail", nil, client.WithCallback(
		func(r any) { results <- r },
		func(err error) { errs <- err },
	))
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, domain.ErrNeedLogin)
	case <-results:
		t.Fatal("expected error-back")
	case <-time.After(2 * time.Second):
		t.Fatal("error-back not delivered")
	}
}

func TestClient_AsyncAfterClose(t *testing.T) {
	c := client.New(client.WithSessions(session.NewManager(memory.NewStore())))
	c.Close()

	_, err := c.Get(context.Background(), "http://127.0.0.1:1", nil, client.WithCallback(func(any) {}, func(error) {}))
	assert.ErrorIs(t, err, client.ErrClosed)
}

func TestHostPrefix(t *testing.T) {
	tests := map[string]string{
		"https://example.com:8443/ui/home.json": "https://example.com:8443",
		"http://example.com/":                   "http://example.com",
		"http://example.com":                    "http://example.com",
		"relative/path":                         "relative/path",
	}
	for in, want := range tests {
		assert.Equal(t, want, client.HostPrefix(in), in)
	}
}
