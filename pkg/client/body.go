package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StatusOK is the "status" value of an envelope whose "data" is the payload.
const StatusOK = "OK"

func newRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	if method == http.MethodGet {
		target, err := withQuery(req.URL, req.Params)
		if err != nil {
			return nil, err
		}
		return http.NewRequestWithContext(ctx, method, target, nil)
	}

	if len(req.Files) > 0 {
		body, contentType, err := multipartBody(req.Params, req.Files)
		if err != nil {
			return nil, err
		}
		r, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		r.Header.Set("Content-Type", contentType)
		return r, nil
	}

	form := url.Values{}
	for k, v := range req.Params {
		addValue(form, k, v)
	}
	r, err := http.NewRequestWithContext(ctx, method, req.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(form) > 0 {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return r, nil
}

func withQuery(raw string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	q := u.Query()
	for k, v := range params {
		addValue(q, k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func multipartBody(params map[string]any, files map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, formatValue(params[k])); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for field, path := range files {
		if err := attachFile(w, field, path); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy upload %s: %w", path, err)
	}
	return nil
}

func addValue(vals url.Values, key string, v any) {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			vals.Add(key, formatValue(item))
		}
		return
	}
	vals.Set(key, formatValue(v))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// interpretBody decodes JSON when possible. An {"status":"OK","data":...} envelope
// yields its data; other values are returned whole; undecodable bodies are returned as text.
func interpretBody(r io.Reader) (any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	if status, _ := m["status"].(string); status == StatusOK {
		return m["data"], nil
	}
	return m, nil
}
