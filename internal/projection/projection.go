// Package projection converts between geographic coordinates and pixels in
// the map container, and sizes the viewport around a set of venues.
package projection

import (
	"math"

	"github.com/paulmach/orb"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
	"club_archive/core-go/internal/venue"
)

// ScreenPoint is a pixel offset from the container's top-left corner.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project places c in container pixels for the map's current centre, zoom
// and size. ok is false while the map has no projection; callers should
// simply not show anything yet.
func Project(m mapprovider.Map, c geo.LatLng) (ScreenPoint, bool) {
	if m == nil {
		return ScreenPoint{}, false
	}
	proj, ok := m.Projection()
	if !ok || proj == nil {
		return ScreenPoint{}, false
	}

	point := proj.FromLatLngToPoint(c)
	center := proj.FromLatLngToPoint(m.Center())
	scale := math.Pow(2, m.Zoom())
	w, h := m.Size()

	return ScreenPoint{
		X: (point[0]-center[0])*scale + float64(w)/2,
		Y: (point[1]-center[1])*scale + float64(h)/2,
	}, true
}

// ComputeBounds returns the smallest box covering every entity's location.
// ok is false for no entities. A single entity yields a zero-area box; the
// caller should centre on it instead of fitting.
func ComputeBounds(entities []venue.Entity) (orb.Bound, bool) {
	if len(entities) == 0 {
		return orb.Bound{}, false
	}
	p := entities[0].Location.Point()
	b := orb.Bound{Min: p, Max: p}
	for _, e := range entities[1:] {
		b = b.Extend(e.Location.Point())
	}
	return b, true
}

// Degenerate reports whether b has no area to fit.
func Degenerate(b orb.Bound) bool {
	return b.Min[0] == b.Max[0] && b.Min[1] == b.Max[1]
}
