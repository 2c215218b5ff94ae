// Package mapprovider describes the map backend the archive map renders
// onto: a loader, a map with viewport and events, markers and a clustering
// layer. Implementations live in sub-packages.
package mapprovider

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"club_archive/core-go/internal/geo"
)

var (
	// ErrMissingCredential means the provider cannot be used this session.
	ErrMissingCredential = errors.New("map provider credential is not configured")
	// ErrLoadFailed means loading the provider failed and may be retried.
	ErrLoadFailed = errors.New("failed to load map provider")
	// ErrNotLoaded is returned when the provider is used before Load succeeded.
	ErrNotLoaded = errors.New("map provider not loaded")
)

type Event string

const (
	EventClick       Event = "click"
	EventDragStart   Event = "dragstart"
	EventZoomChanged Event = "zoom_changed"
)

type Library string

const (
	LibraryMaps   Library = "maps"
	LibraryMarker Library = "marker"
)

// Listener is a registered event handler.
type Listener interface {
	Remove()
}

// Projection converts coordinates to zoom-0 world pixels.
type Projection interface {
	FromLatLngToPoint(ll geo.LatLng) orb.Point
}

type MapOptions struct {
	Center  geo.LatLng
	Zoom    float64
	MinZoom float64
	MaxZoom float64
	MapID   string
	Width   int
	Height  int
}

type Map interface {
	Center() geo.LatLng
	SetCenter(ll geo.LatLng)
	PanTo(ll geo.LatLng)
	Zoom() float64
	SetZoom(z float64)
	// FitBounds moves the viewport so b is visible with padding pixels on
	// every side.
	FitBounds(b orb.Bound, padding int)
	// Projection is unavailable until the map has a rendered size.
	Projection() (Projection, bool)
	Size() (width, height int)
	Resize(width, height int)
	AddListener(ev Event, fn func()) Listener
	Trigger(ev Event)
}

// Content is the visual payload drawn for a marker.
type Content struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type MarkerOptions struct {
	Map      Map
	Position geo.LatLng
	Title    string
	Content  Content
}

type Marker interface {
	Position() geo.LatLng
	Title() string
	Content() Content
	Map() Map
	// SetMap attaches the marker to m; nil detaches it.
	SetMap(m Map)
	AddListener(ev Event, fn func()) Listener
	Trigger(ev Event)
}

// Cluster is one rendered group. A single-member group is drawn as its own
// marker rather than an aggregate.
type Cluster struct {
	Position geo.LatLng
	Markers  []Marker
	Marker   Marker
}

func (c Cluster) Count() int { return len(c.Markers) }

// Bounds covers every member marker.
func (c Cluster) Bounds() orb.Bound {
	b := orb.Bound{Min: c.Position.Point(), Max: c.Position.Point()}
	for i, m := range c.Markers {
		p := m.Position().Point()
		if i == 0 {
			b = orb.Bound{Min: p, Max: p}
			continue
		}
		b = b.Extend(p)
	}
	return b
}

// Renderer builds the aggregate marker drawn for a multi-member cluster.
type Renderer func(count int, position geo.LatLng) Marker

type ClustererOptions struct {
	Map            Map
	Renderer       Renderer
	OnClusterClick func(c Cluster)
}

type Clusterer interface {
	AddMarkers(markers []Marker)
	// ClearMarkers detaches and forgets every marker the clusterer owns.
	ClearMarkers()
	// Clusters groups the owned markers for the map's current viewport.
	Clusters() []Cluster
}

type Provider interface {
	Load(ctx context.Context) error
	ImportLibrary(ctx context.Context, lib Library) error
	NewMap(opts MapOptions) (Map, error)
	NewMarker(opts MarkerOptions) Marker
	NewClusterer(opts ClustererOptions) Clusterer
}
