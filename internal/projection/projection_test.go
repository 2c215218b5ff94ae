package projection

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
	"club_archive/core-go/internal/venue"
)

// fakeMap is the smallest Map that Project needs.
type fakeMap struct {
	mapprovider.Map
	center geo.LatLng
	zoom   float64
	w, h   int
	ready  bool
}

func (f *fakeMap) Center() geo.LatLng { return f.center }
func (f *fakeMap) Zoom() float64      { return f.zoom }
func (f *fakeMap) Size() (int, int)   { return f.w, f.h }
func (f *fakeMap) Projection() (mapprovider.Projection, bool) {
	if !f.ready {
		return nil, false
	}
	return worldProjection{}, true
}

type worldProjection struct{}

func (worldProjection) FromLatLngToPoint(ll geo.LatLng) orb.Point {
	return geo.WorldPoint(ll)
}

func TestProject_NoProjection(t *testing.T) {
	m := &fakeMap{center: geo.LatLng{Lat: -33.9, Lng: 18.4}, zoom: 12, w: 800, h: 600}
	if _, ok := Project(m, geo.LatLng{Lat: -33.9, Lng: 18.4}); ok {
		t.Fatalf("expected no point before projection is ready")
	}
	if _, ok := Project(nil, geo.LatLng{}); ok {
		t.Fatalf("expected no point for nil map")
	}
}

func TestProject_CenterMapsToContainerMiddle(t *testing.T) {
	center := geo.LatLng{Lat: -33.9249, Lng: 18.4241}
	m := &fakeMap{center: center, zoom: 12, w: 800, h: 600, ready: true}

	p, ok := Project(m, center)
	if !ok {
		t.Fatalf("expected projection")
	}
	if p.X != 400 || p.Y != 300 {
		t.Fatalf("expected (400,300), got %+v", p)
	}
}

func TestProject_OffsetScalesWithZoom(t *testing.T) {
	center := geo.LatLng{Lat: -33.9249, Lng: 18.4241}
	east := geo.LatLng{Lat: center.Lat, Lng: center.Lng + 0.01}
	m := &fakeMap{center: center, zoom: 12, w: 800, h: 600, ready: true}

	p12, _ := Project(m, east)
	m.zoom = 13
	p13, _ := Project(m, east)

	// 0.01° lng = 256*0.01/360 world px, times 2^12.
	want := 256 * 0.01 / 360 * 4096
	if math.Abs((p12.X-400)-want) > 1e-6 {
		t.Fatalf("expected x offset %f, got %f", want, p12.X-400)
	}
	if math.Abs((p13.X-400)-2*(p12.X-400)) > 1e-6 {
		t.Fatalf("expected offset to double per zoom level, got %f and %f", p12.X-400, p13.X-400)
	}
	if math.Abs(p12.Y-300) > 1e-9 {
		t.Fatalf("expected same latitude to keep y, got %f", p12.Y)
	}
}

func TestComputeBounds(t *testing.T) {
	if _, ok := ComputeBounds(nil); ok {
		t.Fatalf("expected no bounds for empty input")
	}

	one := []venue.Entity{{Location: geo.LatLng{Lat: -33.9, Lng: 18.4}}}
	b, ok := ComputeBounds(one)
	if !ok || !Degenerate(b) {
		t.Fatalf("expected degenerate box for one entity, got %+v", b)
	}
	if b.Min[0] != 18.4 || b.Min[1] != -33.9 {
		t.Fatalf("expected box at the entity, got %+v", b)
	}

	many := append(one,
		venue.Entity{Location: geo.LatLng{Lat: -34.1, Lng: 18.6}},
		venue.Entity{Location: geo.LatLng{Lat: -33.8, Lng: 18.5}},
	)
	b, _ = ComputeBounds(many)
	if b.Min[0] != 18.4 || b.Max[0] != 18.6 || b.Min[1] != -34.1 || b.Max[1] != -33.8 {
		t.Fatalf("unexpected bounds %+v", b)
	}
	if Degenerate(b) {
		t.Fatalf("expected non-degenerate bounds")
	}
}
