package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Host gives the core access to the running application.
type Host interface {
	// Root returns the application's root node (may be nil before the first build).
	Root() domain.Node
	// AuthHeader returns headers sent to hosts without an established session, or nil.
	AuthHeader() map[string]string
	// FullscreenOverlay returns the node currently shown full-screen, or nil.
	FullscreenOverlay() domain.Node
}

// Confirmer asks the user to confirm an action declared with a "conform" block.
// It returns true when the action may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, conform map[string]any) (bool, error)
}
