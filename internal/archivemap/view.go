package archivemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"club_archive/core-go/internal/filter"
	"club_archive/core-go/internal/loader"
	"club_archive/core-go/internal/mapprovider"
	"club_archive/core-go/internal/markers"
	"club_archive/core-go/internal/metrics"
	"club_archive/core-go/internal/popup"
	"club_archive/core-go/internal/venue"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

var ErrNotReady = errors.New("map view is not ready")

type Config struct {
	Map     mapprovider.MapOptions
	Markers markers.Options
}

// ErrorInfo is the error state shown to the user.
type ErrorInfo struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Snapshot is everything a client needs to draw the view.
type Snapshot struct {
	ID               string                     `json:"id"`
	Status           Status                     `json:"status"`
	Error            *ErrorInfo                 `json:"error,omitempty"`
	Filters          filter.State               `json:"filters"`
	Facets           filter.Facets              `json:"facets"`
	HasActiveFilters bool                       `json:"has_active_filters"`
	VisibleCount     int                        `json:"visible_count"`
	Viewport         *markers.Viewport          `json:"viewport,omitempty"`
	Groups           []markers.Group            `json:"groups"`
	Features         *geojson.FeatureCollection `json:"features"`
	Popup            *popup.State               `json:"popup,omitempty"`
}

// View is one user's map: filter state, marker set and popup. Every
// operation runs under the view lock, one at a time, like events on a UI
// loop. The provider load is awaited outside the lock so the view can be
// read, and shows StatusLoading, while it is in flight.
type View struct {
	id      string
	log     zerolog.Logger
	loader  *loader.Shared
	catalog Catalog
	facets  filter.Facets
	cfg     Config

	popups  *popup.Controller
	markers *markers.Manager

	lastSeen  atomic.Int64
	started   chan struct{}
	startOnce sync.Once

	mu       sync.Mutex
	status   Status
	err      error
	startGen uint64
	closed   bool
	filters  filter.State
	visible  []venue.Entity
}

func NewView(id string, log zerolog.Logger, ld *loader.Shared, p mapprovider.Provider, catalog Catalog, cfg Config, m *metrics.Metrics) *View {
	log = log.With().Str("session", id).Logger()
	popups := popup.New()
	popups.OnHide(func(r popup.Reason) {
		log.Debug().Str("reason", string(r)).Msg("popup hidden")
	})

	initial := filter.Initial(catalog.Neighborhoods)
	v := &View{
		id:      id,
		log:     log,
		loader:  ld,
		catalog: catalog,
		facets:  filter.DeriveFacets(catalog.Entities),
		cfg:     cfg,
		popups:  popups,
		markers: markers.New(log, p, popups, cfg.Markers, m),
		started: make(chan struct{}),
		status:  StatusLoading,
		filters: initial,
		visible: filter.Apply(catalog.Entities, initial),
	}
	v.touch()
	return v
}

func (v *View) ID() string { return v.id }

// Start waits for the shared provider load, creates the map and draws the
// initial markers. A catalog with no mappable venues goes straight to the
// empty state without touching the provider.
func (v *View) Start(ctx context.Context) error {
	defer v.startOnce.Do(func() { close(v.started) })
	return v.start(ctx, v.loader.Acquire)
}

// Wait blocks until the first Start has settled or ctx is done.
func (v *View) Wait(ctx context.Context) error {
	select {
	case <-v.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry re-attempts a failed provider load for the whole process and then
// starts this view. It does nothing unless the view is in the error state.
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	failed := v.status == StatusError
	v.mu.Unlock()
	if !failed {
		return nil
	}
	return v.start(ctx, v.loader.Retry)
}

func (v *View) start(ctx context.Context, acquire func(context.Context) error) error {
	v.touch()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	if len(v.catalog.Entities) == 0 {
		v.status = StatusEmpty
		v.err = nil
		v.mu.Unlock()
		return nil
	}
	v.startGen++
	gen := v.startGen
	v.status = StatusLoading
	v.err = nil
	v.mu.Unlock()

	err := acquire(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.startGen {
		return nil
	}
	if err != nil {
		return v.failLocked(err, "map provider failed to load")
	}
	if err := v.markers.Init(ctx, v.cfg.Map); err != nil {
		return v.failLocked(err, "map init failed")
	}
	if err := v.markers.Render(ctx, v.visible); err != nil {
		return v.failLocked(err, "marker render failed")
	}

	v.status = StatusReady
	return nil
}

func (v *View) failLocked(err error, msg string) error {
	v.status = StatusError
	v.err = err
	v.log.Error().Err(err).Msg(msg)
	return err
}

// ToggleFilter flips value in facet and redraws the markers.
func (v *View) ToggleFilter(ctx context.Context, facet filter.Facet, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setFiltersLocked(ctx, filter.Toggle(v.filters, facet, value))
}

// ResetFilters restores the initial selection and redraws the markers.
func (v *View) ResetFilters(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setFiltersLocked(ctx, filter.Reset(v.catalog.Neighborhoods))
}

func (v *View) setFiltersLocked(ctx context.Context, next filter.State) error {
	v.touch()
	v.filters = next
	v.visible = filter.Apply(v.catalog.Entities, next)

	if v.status != StatusReady {
		return nil
	}
	if err := v.markers.Render(ctx, v.visible); err != nil {
		return v.failLocked(err, "marker render failed")
	}
	return nil
}

// ClickMarker reports false if no visible marker has slug. A click before
// the map has a projection is accepted but shows nothing.
func (v *View) ClickMarker(slug string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	return v.markers.ClickMarker(slug), nil
}

func (v *View) ClickCluster(index int) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	return v.markers.ClickCluster(index), nil
}

func (v *View) ClosePopup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.popups.Close()
}

func (v *View) DragStart() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	return v.markers.DragStart()
}

func (v *View) SetZoom(z float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	return v.markers.SetZoom(z)
}

func (v *View) Resize(width, height int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	return v.markers.Resize(width, height)
}

// Close releases the markers and map listeners.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.markers.Teardown()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		ID:               v.id,
		Status:           v.status,
		Filters:          v.filters.Clone(),
		Facets:           v.facets,
		HasActiveFilters: filter.HasActive(v.filters, v.catalog.Neighborhoods),
		VisibleCount:     len(v.visible),
		Groups:           []markers.Group{},
		Features:         geojson.NewFeatureCollection(),
	}
	if v.err != nil {
		s.Error = &ErrorInfo{
			Message:   v.err.Error(),
			Retryable: !errors.Is(v.err, mapprovider.ErrMissingCredential),
		}
	}
	if v.status == StatusReady {
		if vp, ok := v.markers.Viewport(); ok {
			s.Viewport = &vp
		}
		s.Groups = v.markers.Groups()
		s.Features = v.markers.FeatureCollection()
	}
	if p, ok := v.popups.Current(); ok {
		s.Popup = &p
	}
	return s
}

// idleSince is lock-free so the registry can sweep while a view is busy.
func (v *View) idleSince() time.Time {
	return time.Unix(0, v.lastSeen.Load())
}

func (v *View) touch() {
	v.lastSeen.Store(time.Now().UnixNano())
}

func (v *View) readyLocked() error {
	v.touch()
	if v.status != StatusReady {
		return ErrNotReady
	}
	return nil
}
