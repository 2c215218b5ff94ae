// Package markers owns the map, its markers, listeners and clusterer for a
// single map view. Nothing outside this package holds a raw handle.
package markers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
	"club_archive/core-go/internal/metrics"
	"club_archive/core-go/internal/projection"
	"club_archive/core-go/internal/venue"
)

var ErrNoMap = errors.New("map not initialised")

// Popups is what the manager drives when markers are clicked or the
// viewport moves.
type Popups interface {
	Show(e venue.Entity, x, y float64)
	OnDragStart()
	OnZoomChanged()
	OnRebuild()
}

type Options struct {
	// SingleZoom is used when exactly one venue is visible.
	SingleZoom float64
	MinZoom    float64
	MaxZoom    float64
	Padding    int
	// ClusterZoomStep is how far a cluster click zooms in at most.
	ClusterZoomStep float64
	MarkerIcon      string
}

type placed struct {
	entity venue.Entity
	marker mapprovider.Marker
}

type Manager struct {
	log      zerolog.Logger
	provider mapprovider.Provider
	popups   Popups
	metrics  *metrics.Metrics
	opts     Options

	mu        sync.Mutex
	m         mapprovider.Map
	mapLis    []mapprovider.Listener
	clusterer mapprovider.Clusterer
	placed    []placed
	bySlug    map[string]int
	listeners []mapprovider.Listener
	gen       uint64
}

func New(log zerolog.Logger, p mapprovider.Provider, popups Popups, opts Options, m *metrics.Metrics) *Manager {
	if opts.SingleZoom <= 0 {
		opts.SingleZoom = 15
	}
	if opts.MinZoom <= 0 {
		opts.MinZoom = 8
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 18
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	if opts.ClusterZoomStep <= 0 {
		opts.ClusterZoomStep = 2
	}
	if opts.MarkerIcon == "" {
		opts.MarkerIcon = "/icons/disco-icon.svg"
	}
	return &Manager{
		log:      log,
		provider: p,
		popups:   popups,
		metrics:  m,
		opts:     opts,
		bySlug:   map[string]int{},
	}
}

// Init creates the map once. Drag and zoom events hide the popup for the
// life of the map.
func (mg *Manager) Init(ctx context.Context, opts mapprovider.MapOptions) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if mg.m != nil {
		return nil
	}
	if err := mg.provider.ImportLibrary(ctx, mapprovider.LibraryMaps); err != nil {
		return fmt.Errorf("import maps library: %w", err)
	}
	if opts.MinZoom == 0 {
		opts.MinZoom = mg.opts.MinZoom
	}
	if opts.MaxZoom == 0 {
		opts.MaxZoom = mg.opts.MaxZoom
	}

	m, err := mg.provider.NewMap(opts)
	if err != nil {
		return fmt.Errorf("create map: %w", err)
	}
	mg.m = m
	mg.mapLis = []mapprovider.Listener{
		m.AddListener(mapprovider.EventDragStart, mg.popups.OnDragStart),
		m.AddListener(mapprovider.EventZoomChanged, mg.popups.OnZoomChanged),
	}
	return nil
}

// Render replaces the marker set with one marker per entity. The previous
// set, its click handlers and the clusterer contents are gone before the
// first new marker exists. On error the map is left with no markers.
func (mg *Manager) Render(ctx context.Context, entities []venue.Entity) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if mg.m == nil {
		return ErrNoMap
	}
	mg.gen++
	gen := mg.gen

	mg.teardownLocked()

	if err := mg.provider.ImportLibrary(ctx, mapprovider.LibraryMarker); err != nil {
		mg.log.Error().Err(err).Msg("marker library unavailable")
		mg.metrics.ObserveMarkerRebuild(0)
		return fmt.Errorf("import marker library: %w", err)
	}

	markers := make([]mapprovider.Marker, 0, len(entities))
	for _, e := range entities {
		mk := mg.provider.NewMarker(mapprovider.MarkerOptions{
			Position: e.Location,
			Title:    e.Title,
			Content:  mapprovider.Content{Kind: "venue", Icon: mg.opts.MarkerIcon},
		})
		entity := e
		mg.listeners = append(mg.listeners, mk.AddListener(mapprovider.EventClick, func() {
			mg.markerClicked(gen, entity)
		}))
		if e.Slug != "" {
			if _, dup := mg.bySlug[e.Slug]; !dup {
				mg.bySlug[e.Slug] = len(mg.placed)
			}
		}
		mg.placed = append(mg.placed, placed{entity: e, marker: mk})
		markers = append(markers, mk)
	}

	mg.fitLocked(entities)

	if mg.clusterer == nil {
		mg.clusterer = mg.provider.NewClusterer(mapprovider.ClustererOptions{
			Map:            mg.m,
			Renderer:       mg.renderCluster,
			OnClusterClick: mg.clusterClicked,
		})
	}
	mg.clusterer.AddMarkers(markers)
	groups := mg.clusterer.Clusters()

	mg.metrics.ObserveMarkerRebuild(len(markers))
	mg.log.Debug().
		Int("markers", len(markers)).
		Int("groups", len(groups)).
		Uint64("generation", gen).
		Msg("markers rendered")
	return nil
}

// Teardown removes every marker and listener, including the map's own.
func (mg *Manager) Teardown() {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	mg.gen++
	mg.teardownLocked()
	for _, l := range mg.mapLis {
		l.Remove()
	}
	mg.mapLis = nil
}

func (mg *Manager) teardownLocked() {
	for _, l := range mg.listeners {
		l.Remove()
	}
	mg.listeners = nil

	if mg.clusterer != nil {
		mg.clusterer.ClearMarkers()
	}
	for _, p := range mg.placed {
		if p.marker.Map() != nil {
			p.marker.SetMap(nil)
		}
	}
	mg.placed = nil
	mg.bySlug = map[string]int{}

	mg.popups.OnRebuild()
}

func (mg *Manager) fitLocked(entities []venue.Entity) {
	b, ok := projection.ComputeBounds(entities)
	if !ok {
		return
	}
	if len(entities) == 1 || projection.Degenerate(b) {
		mg.m.SetCenter(entities[0].Location)
		mg.m.SetZoom(mg.opts.SingleZoom)
		return
	}

	mg.m.FitBounds(b, mg.opts.Padding)
	if z := mg.m.Zoom(); z > mg.opts.MinZoom {
		mg.m.SetZoom(z - 1)
	}
}

func (mg *Manager) renderCluster(count int, pos geo.LatLng) mapprovider.Marker {
	label := strconv.Itoa(count)
	return mg.provider.NewMarker(mapprovider.MarkerOptions{
		Position: pos,
		Title:    label + " venues",
		Content:  mapprovider.Content{Kind: "cluster", Label: label},
	})
}

func (mg *Manager) markerClicked(gen uint64, e venue.Entity) {
	mg.mu.Lock()
	stale := gen != mg.gen
	m := mg.m
	mg.mu.Unlock()
	if stale {
		return
	}

	pt, ok := projection.Project(m, e.Location)
	if !ok {
		mg.log.Debug().Str("slug", e.Slug).Msg("projection not ready, popup skipped")
		return
	}
	mg.popups.Show(e, pt.X, pt.Y)
}

// clusterClicked fits the view to the cluster's members, zooms in a further
// ClusterZoomStep levels capped at MaxZoom, then pans to the cluster.
func (mg *Manager) clusterClicked(c mapprovider.Cluster) {
	mg.mu.Lock()
	m := mg.m
	mg.mu.Unlock()
	if m == nil {
		return
	}

	m.FitBounds(c.Bounds(), mg.opts.Padding)
	m.SetZoom(math.Min(m.Zoom()+mg.opts.ClusterZoomStep, mg.opts.MaxZoom))
	m.PanTo(c.Position)
}
