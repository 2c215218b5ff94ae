// Package popup keeps the single venue popup of a map view.
package popup

import (
	"sync"

	"club_archive/core-go/internal/venue"
)

// State is a shown popup anchored at container pixels X, Y.
type State struct {
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Entity venue.Entity `json:"entity"`
}

// Reason records why a popup was hidden.
type Reason string

const (
	ReasonClosed    Reason = "closed"
	ReasonDragStart Reason = "dragstart"
	ReasonZoom      Reason = "zoom_changed"
	ReasonRebuild   Reason = "rebuild"
)

// Controller holds at most one popup. Show replaces the current popup in a
// single step, so there is never a moment with two or with a gap between.
type Controller struct {
	mu      sync.Mutex
	current *State
	onHide  func(Reason)
}

func New() *Controller {
	return &Controller{}
}

// OnHide registers fn to be called after a shown popup is hidden.
func (c *Controller) OnHide(fn func(Reason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHide = fn
}

func (c *Controller) Show(e venue.Entity, x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &State{X: x, Y: y, Entity: e}
}

func (c *Controller) Current() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return State{}, false
	}
	return *c.current, true
}

func (c *Controller) Close()         { c.hide(ReasonClosed) }
func (c *Controller) OnDragStart()   { c.hide(ReasonDragStart) }
func (c *Controller) OnZoomChanged() { c.hide(ReasonZoom) }
func (c *Controller) OnRebuild()     { c.hide(ReasonRebuild) }

func (c *Controller) hide(reason Reason) {
	c.mu.Lock()
	wasShown := c.current != nil
	c.current = nil
	fn := c.onHide
	c.mu.Unlock()

	if wasShown && fn != nil {
		fn(reason)
	}
}
