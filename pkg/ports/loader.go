package ports

import "context"

// DescriptionLoader retrieves named descriptions from a library (e.g. a loam directory).
type DescriptionLoader interface {
	// Load returns the decoded description stored under id.
	Load(ctx context.Context, id string) (map[string]any, error)

	// List returns every description id available in the library.
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload in `arbor serve`.
type Watchable interface {
	// Watch returns a channel that receives the id of every changed description.
	Watch(ctx context.Context) (<-chan string, error)
}
