package headless

import (
	"math"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
)

const (
	defaultClusterRadius = 60
	minClusterPoints     = 2
)

// Clusterer greedily groups markers whose screen positions at the current
// zoom are within radius pixels of a seed marker.
type Clusterer struct {
	mu        sync.Mutex
	m         mapprovider.Map
	renderer  mapprovider.Renderer
	onClick   func(mapprovider.Cluster)
	radius    float64
	markers   []mapprovider.Marker
	rendered  []mapprovider.Cluster
	listeners []mapprovider.Listener
	dirty     bool
	lastZoom  float64
}

var _ mapprovider.Clusterer = (*Clusterer)(nil)

func newClusterer(opts mapprovider.ClustererOptions, radius float64) *Clusterer {
	if radius <= 0 {
		radius = defaultClusterRadius
	}
	return &Clusterer{
		m:        opts.Map,
		renderer: opts.Renderer,
		onClick:  opts.OnClusterClick,
		radius:   radius,
		dirty:    true,
	}
}

func (c *Clusterer) AddMarkers(markers []mapprovider.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markers = append(c.markers, markers...)
	c.dirty = true
}

func (c *Clusterer) ClearMarkers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposeRendered()
	for _, mk := range c.markers {
		mk.SetMap(nil)
	}
	c.markers = nil
	c.dirty = true
}

// Clusters regroups the markers if the zoom or marker set changed since the
// last call and returns the current groups.
func (c *Clusterer) Clusters() []mapprovider.Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m == nil {
		return nil
	}
	zoom := c.m.Zoom()
	if c.dirty || zoom != c.lastZoom {
		c.regroup(zoom)
	}

	out := make([]mapprovider.Cluster, len(c.rendered))
	copy(out, c.rendered)
	return out
}

// Len is the number of markers owned by the clusterer.
func (c *Clusterer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.markers)
}

func (c *Clusterer) regroup(zoom float64) {
	c.disposeRendered()

	scale := math.Pow(2, zoom)
	pts := make([]orb.Point, len(c.markers))
	for i, mk := range c.markers {
		wp := geo.WorldPoint(mk.Position())
		pts[i] = orb.Point{wp[0] * scale, wp[1] * scale}
	}

	processed := make([]bool, len(c.markers))
	r2 := c.radius * c.radius
	var groups []mapprovider.Cluster

	for i := range c.markers {
		if processed[i] {
			continue
		}
		processed[i] = true
		members := []int{i}
		for j := i + 1; j < len(c.markers); j++ {
			if processed[j] {
				continue
			}
			dx := pts[j][0] - pts[i][0]
			dy := pts[j][1] - pts[i][1]
			if dx*dx+dy*dy <= r2 {
				processed[j] = true
				members = append(members, j)
			}
		}

		if len(members) < minClusterPoints {
			mk := c.markers[i]
			mk.SetMap(c.m)
			groups = append(groups, mapprovider.Cluster{
				Position: mk.Position(),
				Markers:  []mapprovider.Marker{mk},
				Marker:   mk,
			})
			continue
		}

		var sumX, sumY float64
		group := make([]mapprovider.Marker, 0, len(members))
		for _, idx := range members {
			sumX += pts[idx][0]
			sumY += pts[idx][1]
			group = append(group, c.markers[idx])
			c.markers[idx].SetMap(nil)
		}
		n := float64(len(members))
		pos := geo.FromWorldPoint(orb.Point{sumX / n / scale, sumY / n / scale})

		cl := mapprovider.Cluster{Position: pos, Markers: group}
		cl.Marker = c.render(len(members), pos)
		cl.Marker.SetMap(c.m)
		if c.onClick != nil {
			onClick, snapshot := c.onClick, cl
			c.listeners = append(c.listeners, cl.Marker.AddListener(mapprovider.EventClick, func() {
				onClick(snapshot)
			}))
		}
		groups = append(groups, cl)
	}

	c.rendered = groups
	c.lastZoom = zoom
	c.dirty = false
}

func (c *Clusterer) render(count int, pos geo.LatLng) mapprovider.Marker {
	if c.renderer != nil {
		if mk := c.renderer(count, pos); mk != nil {
			return mk
		}
	}
	return newMarker(mapprovider.MarkerOptions{
		Position: pos,
		Title:    strconv.Itoa(count) + " venues",
		Content:  mapprovider.Content{Kind: "cluster", Label: strconv.Itoa(count)},
	})
}

// disposeRendered removes aggregate markers and their click handlers.
func (c *Clusterer) disposeRendered() {
	for _, l := range c.listeners {
		l.Remove()
	}
	c.listeners = nil
	for _, cl := range c.rendered {
		if cl.Count() > 1 && cl.Marker != nil {
			cl.Marker.SetMap(nil)
		}
	}
	c.rendered = nil
}
