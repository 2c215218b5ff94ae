package markers

import (
	"github.com/paulmach/orb/geojson"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
)

type Viewport struct {
	Center geo.LatLng `json:"center"`
	Zoom   float64    `json:"zoom"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
}

// Group is a read-only view of one clusterer group.
type Group struct {
	Index    int        `json:"index"`
	Count    int        `json:"count"`
	Position geo.LatLng `json:"position"`
	Slugs    []string   `json:"slugs"`
	Title    string     `json:"title,omitempty"`
	Status   string     `json:"status,omitempty"`
}

func (mg *Manager) Viewport() (Viewport, bool) {
	mg.mu.Lock()
	m := mg.m
	mg.mu.Unlock()
	if m == nil {
		return Viewport{}, false
	}
	w, h := m.Size()
	return Viewport{Center: m.Center(), Zoom: m.Zoom(), Width: w, Height: h}, true
}

// Resize reports the container size; the projection becomes available once
// both sides are positive.
func (mg *Manager) Resize(width, height int) error {
	m, err := mg.currentMap()
	if err != nil {
		return err
	}
	m.Resize(width, height)
	return nil
}

// SetZoom is a user zoom; the map fires zoom_changed if it moved.
func (mg *Manager) SetZoom(z float64) error {
	m, err := mg.currentMap()
	if err != nil {
		return err
	}
	m.SetZoom(z)
	return nil
}

// DragStart is a user starting to pan the map.
func (mg *Manager) DragStart() error {
	m, err := mg.currentMap()
	if err != nil {
		return err
	}
	m.Trigger(mapprovider.EventDragStart)
	return nil
}

// ClickMarker dispatches a click on the marker for slug. It reports false
// when no current marker has that slug.
func (mg *Manager) ClickMarker(slug string) bool {
	mg.mu.Lock()
	idx, ok := mg.bySlug[slug]
	var mk mapprovider.Marker
	if ok {
		mk = mg.placed[idx].marker
	}
	mg.mu.Unlock()

	if !ok {
		return false
	}
	mk.Trigger(mapprovider.EventClick)
	return true
}

// ClickCluster dispatches a click on the group at index, as returned by
// Groups. Single-member groups behave as a marker click.
func (mg *Manager) ClickCluster(index int) bool {
	mg.mu.Lock()
	cl := mg.clusterer
	mg.mu.Unlock()
	if cl == nil {
		return false
	}

	groups := cl.Clusters()
	if index < 0 || index >= len(groups) {
		return false
	}
	groups[index].Marker.Trigger(mapprovider.EventClick)
	return true
}

// Groups returns the clusterer's grouping for the current zoom.
func (mg *Manager) Groups() []Group {
	mg.mu.Lock()
	cl := mg.clusterer
	slugOf := make(map[mapprovider.Marker]placed, len(mg.placed))
	for _, p := range mg.placed {
		slugOf[p.marker] = p
	}
	mg.mu.Unlock()

	if cl == nil {
		return []Group{}
	}

	clusters := cl.Clusters()
	out := make([]Group, 0, len(clusters))
	for i, c := range clusters {
		g := Group{Index: i, Count: c.Count(), Position: c.Position, Slugs: make([]string, 0, c.Count())}
		for _, mk := range c.Markers {
			if p, ok := slugOf[mk]; ok {
				g.Slugs = append(g.Slugs, p.entity.Slug)
				if c.Count() == 1 {
					g.Title = p.entity.Title
					g.Status = string(p.entity.Status)
				}
			}
		}
		out = append(out, g)
	}
	return out
}

// Len is the number of markers created by the last render.
func (mg *Manager) Len() int {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return len(mg.placed)
}

// ListenerCount is the number of marker click handlers currently wired.
func (mg *Manager) ListenerCount() int {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return len(mg.listeners)
}

// FeatureCollection renders the current groups as GeoJSON points.
func (mg *Manager) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range mg.Groups() {
		f := geojson.NewFeature(g.Position.Point())
		f.Properties["cluster"] = g.Count > 1
		f.Properties["cluster_index"] = g.Index
		f.Properties["point_count"] = g.Count
		if g.Count == 1 && len(g.Slugs) == 1 {
			f.Properties["slug"] = g.Slugs[0]
			f.Properties["title"] = g.Title
			f.Properties["status"] = g.Status
			f.Properties["icon"] = mg.opts.MarkerIcon
		} else {
			f.Properties["slugs"] = g.Slugs
		}
		fc.Append(f)
	}
	return fc
}

func (mg *Manager) currentMap() (mapprovider.Map, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if mg.m == nil {
		return nil, ErrNoMap
	}
	return mg.m, nil
}
