package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// SessionStore persists the session token established with each remote host.
// Keys are scheme+host+port prefixes such as "https://api.example.com:8443".
type SessionStore interface {
	// Get returns the record for a host.
	// Returns domain.ErrSessionNotFound if no record exists.
	Get(ctx context.Context, host string) (domain.SessionRecord, error)

	// Put creates or overwrites the record for record.Host.
	Put(ctx context.Context, record domain.SessionRecord) error

	// Delete removes the record for a host. Deleting a missing host is not an error.
	Delete(ctx context.Context, host string) error

	// List returns the hosts that currently hold a record.
	List(ctx context.Context) ([]string, error)
}
