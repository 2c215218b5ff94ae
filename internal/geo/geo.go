// Package geo holds the coordinate primitives shared by the archive map:
// validation of stored locations, Web Mercator world-point math and
// co-location keys.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// TileSize is the edge of the zoom-0 world in pixels.
const TileSize = 256

// colocationLevel is roughly a 1m² cell; two venues in the same cell are
// almost certainly a geocoder fallback rather than neighbours.
const colocationLevel = 24

// maxSin clamps latitudes to the range Web Mercator can represent.
const maxSin = 0.9999

type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// IsValidCoordinate reports whether loc is usable on the map. A missing
// location, a non-finite component or a component equal to exactly 0 are
// all treated as "unset".
func IsValidCoordinate(loc *LatLng) bool {
	if loc == nil {
		return false
	}
	return loc.Valid()
}

func (ll LatLng) Valid() bool {
	if !finite(ll.Lat) || !finite(ll.Lng) {
		return false
	}
	return ll.Lat != 0 && ll.Lng != 0
}

// Point returns ll in orb's (lng, lat) order.
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// WorldPoint projects ll into zoom-0 pixel space ([0,256) on both axes).
func WorldPoint(ll LatLng) orb.Point {
	sin := math.Sin(ll.Lat * math.Pi / 180)
	sin = math.Min(math.Max(sin, -maxSin), maxSin)

	x := TileSize * (0.5 + ll.Lng/360)
	y := TileSize * (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi))
	return orb.Point{x, y}
}

// FromWorldPoint is the inverse of WorldPoint.
func FromWorldPoint(p orb.Point) LatLng {
	x := p[0]/TileSize - 0.5
	y := 0.5 - p[1]/TileSize

	lng := x * 360
	lat := math.Atan(math.Sinh(2*math.Pi*y)) * 180 / math.Pi
	return LatLng{Lat: lat, Lng: lng}
}

// CellKey buckets ll into an s2 cell small enough that two venues sharing a
// key are effectively at the same spot.
func CellKey(ll LatLng) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(ll.Lat, ll.Lng)).Parent(colocationLevel)
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b LatLng) float64 {
	const earthRadiusMetres = 6371010.0
	angle := s2.LatLngFromDegrees(a.Lat, a.Lng).Distance(s2.LatLngFromDegrees(b.Lat, b.Lng))
	return angle.Radians() * earthRadiusMetres
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
