package headless

import (
	"math"
	"sync"

	"github.com/paulmach/orb"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
)

// Map keeps a viewport in memory and answers the same questions a browser
// map would: where is the centre, what is the zoom, which overlays are on it.
type Map struct {
	mu       sync.Mutex
	center   geo.LatLng
	zoom     float64
	minZoom  float64
	maxZoom  float64
	width    int
	height   int
	mapID    string
	overlays map[*Marker]struct{}
	events   listeners
}

var _ mapprovider.Map = (*Map)(nil)

func newMap(opts mapprovider.MapOptions) *Map {
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = 22
	}
	m := &Map{
		center:   opts.Center,
		minZoom:  math.Max(opts.MinZoom, 0),
		maxZoom:  maxZoom,
		width:    opts.Width,
		height:   opts.Height,
		mapID:    opts.MapID,
		overlays: map[*Marker]struct{}{},
	}
	m.zoom = m.clamp(opts.Zoom)
	return m
}

func (m *Map) Center() geo.LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

func (m *Map) SetCenter(ll geo.LatLng) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = ll
}

func (m *Map) PanTo(ll geo.LatLng) {
	m.SetCenter(ll)
}

func (m *Map) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// SetZoom clamps z to the map's range and fires zoom_changed when the
// effective zoom moves.
func (m *Map) SetZoom(z float64) {
	m.mu.Lock()
	z = m.clamp(z)
	changed := z != m.zoom
	m.zoom = z
	m.mu.Unlock()

	if changed {
		m.events.fire(mapprovider.EventZoomChanged)
	}
}

func (m *Map) FitBounds(b orb.Bound, padding int) {
	m.mu.Lock()
	w, h := m.width, m.height
	m.mu.Unlock()

	nw := geo.WorldPoint(geo.LatLng{Lat: b.Max.Lat(), Lng: b.Min.Lon()})
	se := geo.WorldPoint(geo.LatLng{Lat: b.Min.Lat(), Lng: b.Max.Lon()})
	dx := math.Abs(se[0] - nw[0])
	dy := math.Abs(se[1] - nw[1])

	availW := float64(w - 2*padding)
	availH := float64(h - 2*padding)
	if availW <= 0 || availH <= 0 {
		availW, availH = float64(w), float64(h)
	}

	zoom := m.maxZoom
	if w > 0 && h > 0 {
		scale := math.Inf(1)
		if dx > 0 {
			scale = math.Min(scale, availW/dx)
		}
		if dy > 0 {
			scale = math.Min(scale, availH/dy)
		}
		if !math.IsInf(scale, 1) {
			zoom = math.Floor(math.Log2(scale))
		}
	}

	mid := orb.Point{(nw[0] + se[0]) / 2, (nw[1] + se[1]) / 2}
	m.SetCenter(geo.FromWorldPoint(mid))
	m.SetZoom(zoom)
}

func (m *Map) Projection() (mapprovider.Projection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.width <= 0 || m.height <= 0 {
		return nil, false
	}
	return mercator{}, true
}

func (m *Map) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

func (m *Map) Resize(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width, m.height = width, height
}

func (m *Map) AddListener(ev mapprovider.Event, fn func()) mapprovider.Listener {
	return m.events.add(ev, fn)
}

func (m *Map) Trigger(ev mapprovider.Event) {
	m.events.fire(ev)
}

// ListenerCount is the number of live handlers across all events.
func (m *Map) ListenerCount() int {
	return m.events.count()
}

// Overlays returns the markers currently drawn on the map.
func (m *Map) Overlays() []*Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Marker, 0, len(m.overlays))
	for mk := range m.overlays {
		out = append(out, mk)
	}
	return out
}

func (m *Map) attach(mk *Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays[mk] = struct{}{}
}

func (m *Map) detach(mk *Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overlays, mk)
}

func (m *Map) clamp(z float64) float64 {
	return math.Min(math.Max(z, m.minZoom), m.maxZoom)
}

type mercator struct{}

func (mercator) FromLatLngToPoint(ll geo.LatLng) orb.Point {
	return geo.WorldPoint(ll)
}
