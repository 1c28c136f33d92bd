package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.DescriptionLoader using an in-memory map of raw JSON.
type Loader struct {
	mu    sync.RWMutex
	descs map[string][]byte
}

// NewLoader creates a new Loader with the provided raw data (JSON strings).
func NewLoader(data map[string]string) *Loader {
	descs := make(map[string][]byte, len(data))
	for k, v := range data {
		descs[k] = []byte(v)
	}
	return &Loader{
		descs: descs,
	}
}

// NewFromDescriptions creates a Loader from decoded descriptions.
// This handles serialization automatically, improving DX for tests.
func NewFromDescriptions(descs map[string]domain.Description) (*Loader, error) {
	data := make(map[string][]byte, len(descs))
	for id, d := range descs {
		if d.Type() == "" {
			return nil, fmt.Errorf("description %s missing type: %w", id, domain.ErrMalformedDescription)
		}
		bytes, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal description %s: %w", id, err)
		}
		data[id] = bytes
	}
	return &Loader{descs: data}, nil
}

// Set adds or replaces a raw description.
func (l *Loader) Set(id, raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.descs[id] = []byte(raw)
}

// Load decodes the description stored under id.
func (l *Loader) Load(ctx context.Context, id string) (map[string]any, error) {
	l.mu.RLock()
	content, ok := l.descs[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDescriptionNotFound, id)
	}

	var out map[string]any
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedDescription, id, err)
	}
	return out, nil
}

// List returns all available description ids.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.descs))
	for k := range l.descs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
