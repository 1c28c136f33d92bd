package runtime

import (
	"reflect"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Root markers make a path start at the host's root node.
const (
	RootMarker     = "root"
	SelfRootMarker = "/self"
)

// Finder resolves dotted identifier paths to nodes.
type Finder struct {
	host ports.Host
}

// NewFinder creates a Finder. host may be nil when no application root exists.
func NewFinder(host ports.Host) *Finder {
	return &Finder{host: host}
}

// Find resolves path segment by segment starting at from. It returns nil when
// any segment does not match; a nil from starts at the host root.
func (f *Finder) Find(path string, from domain.Node) domain.Node {
	if path == "" {
		path = domain.SelfID
	}
	segments := strings.Split(path, ".")
	if segments[0] == RootMarker || segments[0] == SelfRootMarker {
		from = f.root()
		segments[0] = domain.SelfID
	}
	if from == nil {
		from = f.root()
	}

	cur := from
	for _, seg := range segments {
		if cur == nil {
			return nil
		}
		next := findLocal(seg, cur)
		if next == nil {
			next = f.findInOverlay(seg, cur)
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (f *Finder) root() domain.Node {
	if f.host == nil {
		return nil
	}
	return f.host.Root()
}

// findInOverlay searches the full-screen overlay when the search started at the host root.
func (f *Finder) findInOverlay(seg string, from domain.Node) domain.Node {
	if f.host == nil || !sameNode(from, f.host.Root()) {
		return nil
	}
	overlay := f.host.FullscreenOverlay()
	if overlay == nil {
		return nil
	}
	return findLocal(seg, overlay)
}

// findLocal checks self, the node's own id, a same-named node attribute, then
// its descendants depth-first.
func findLocal(seg string, from domain.Node) domain.Node {
	if from == nil {
		return nil
	}
	if seg == domain.SelfID {
		return from
	}
	if from.ID() == seg {
		return from
	}
	if v, ok := from.Attribute(seg); ok {
		if n, ok := v.(domain.Node); ok && n != nil {
			return n
		}
	}
	c, ok := from.(domain.Container)
	if !ok {
		return nil
	}
	for _, child := range c.Children() {
		if found := findLocal(seg, child); found != nil {
			return found
		}
	}
	return nil
}

func sameNode(a, b domain.Node) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
