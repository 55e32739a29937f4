// Package point implements Starlane's hierarchical address type: a rooted,
// dot/colon-segmented name with a route prefix identifying the owning mesh
// segment.
package point

import (
	"fmt"
	"strings"
)

// RouteKind identifies the mesh segment that owns a Point.
type RouteKind string

const (
	RouteLocal    RouteKind = "Local"
	RouteMesh     RouteKind = "Mesh"
	RouteFabric   RouteKind = "Fabric"
	RouteResource RouteKind = "Resource"
)

// Route is the route prefix of a Point. Mesh carries the owning star id.
type Route struct {
	Kind RouteKind
	Star string // only meaningful when Kind == RouteMesh
}

func LocalRoute() Route    { return Route{Kind: RouteLocal} }
func FabricRoute() Route   { return Route{Kind: RouteFabric} }
func MeshRoute(star string) Route {
	return Route{Kind: RouteMesh, Star: star}
}
func ResourceRoute() Route { return Route{Kind: RouteResource} }

func (r Route) String() string {
	switch r.Kind {
	case RouteMesh:
		return fmt.Sprintf("Mesh<%s>", r.Star)
	default:
		return string(r.Kind)
	}
}

// Root is the address of the synthetic global root particle ("+").
const Root = "+"

// Point is a rooted hierarchical address. Segments are separated by '.' or
// ':'; the latter is used conventionally between a space and its children.
// Points are immutable and append-only: a child is derived from a parent via
// Push, never by mutating the parent in place.
type Point struct {
	route    Route
	segments []string
}

// New parses a raw address string into a Point. The route prefix, if any,
// is stripped before segmentation; bare segments default to RouteLocal.
func New(raw string) (Point, error) {
	route := LocalRoute()
	body := raw

	if strings.HasPrefix(raw, "Mesh<") {
		end := strings.IndexByte(raw, '>')
		if end < 0 {
			return Point{}, fmt.Errorf("malformed mesh route prefix in %q", raw)
		}
		route = MeshRoute(raw[len("Mesh<"):end])
		body = raw[end+1:]
	} else if strings.HasPrefix(raw, "Fabric::") {
		route = FabricRoute()
		body = strings.TrimPrefix(raw, "Fabric::")
	} else if strings.HasPrefix(raw, "Resource::") {
		route = ResourceRoute()
		body = strings.TrimPrefix(raw, "Resource::")
	}

	if body == Root || body == "" {
		return Point{route: route, segments: nil}, nil
	}

	segs := splitSegments(body)
	for _, s := range segs {
		if s == "" {
			return Point{}, fmt.Errorf("empty segment in address %q", raw)
		}
	}
	return Point{route: route, segments: segs}, nil
}

// MustNew parses raw and panics on error; for use with compile-time constant
// addresses only.
func MustNew(raw string) Point {
	p, err := New(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func splitSegments(body string) []string {
	var segs []string
	var cur strings.Builder
	for _, r := range body {
		if r == '.' || r == ':' {
			segs = append(segs, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	segs = append(segs, cur.String())
	return segs
}

// IsRoot reports whether p is the synthetic global root.
func (p Point) IsRoot() bool { return len(p.segments) == 0 }

// Route returns p's route prefix.
func (p Point) Route() Route { return p.route }

// Segments returns a copy of p's path segments, root-to-leaf.
func (p Point) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Parent returns p's parent and true, or the zero Point and false if p is
// root.
func (p Point) Parent() (Point, bool) {
	if p.IsRoot() {
		return Point{}, false
	}
	parent := Point{route: p.route, segments: p.segments[:len(p.segments)-1]}
	return parent, true
}

// Segment returns the final path segment, or "" for root.
func (p Point) Segment() string {
	if p.IsRoot() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Push derives a child address by appending segment to p. Points are
// append-only: Push never mutates p.
func (p Point) Push(segment string) (Point, error) {
	if segment == "" {
		return Point{}, fmt.Errorf("cannot push empty segment onto %q", p.String())
	}
	segs := make([]string, len(p.segments)+1)
	copy(segs, p.segments)
	segs[len(segs)-1] = segment
	return Point{route: p.route, segments: segs}, nil
}

// String renders p back to its canonical wire form.
func (p Point) String() string {
	var prefix string
	switch p.route.Kind {
	case RouteMesh:
		prefix = fmt.Sprintf("Mesh<%s>", p.route.Star)
	case RouteFabric:
		prefix = "Fabric::"
	case RouteResource:
		prefix = "Resource::"
	}
	if p.IsRoot() {
		if prefix == "" {
			return Root
		}
		return prefix + Root
	}
	return prefix + strings.Join(p.segments, ":")
}

// Equal reports structural equality: same route and same segments.
func (p Point) Equal(o Point) bool {
	if p.route != o.route {
		return false
	}
	if len(p.segments) != len(o.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict ancestor of o.
func (p Point) IsAncestorOf(o Point) bool {
	if len(p.segments) >= len(o.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// Depth returns the number of segments (0 for root).
func (p Point) Depth() int { return len(p.segments) }
