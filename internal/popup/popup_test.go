package popup

import (
	"sync"
	"testing"

	"club_archive/core-go/internal/venue"
)

func TestController_ShowReplaces(t *testing.T) {
	c := New()
	if _, ok := c.Current(); ok {
		t.Fatalf("expected hidden initially")
	}

	c.Show(venue.Entity{Slug: "a"}, 10, 20)
	c.Show(venue.Entity{Slug: "b"}, 30, 40)

	got, ok := c.Current()
	if !ok || got.Entity.Slug != "b" || got.X != 30 || got.Y != 40 {
		t.Fatalf("expected popup for b at (30,40), got %+v ok=%v", got, ok)
	}
}

func TestController_HideTransitions(t *testing.T) {
	var reasons []Reason
	c := New()
	c.OnHide(func(r Reason) { reasons = append(reasons, r) })

	for _, hide := range []func(){c.Close, c.OnDragStart, c.OnZoomChanged, c.OnRebuild} {
		c.Show(venue.Entity{Slug: "a"}, 1, 2)
		hide()
		if _, ok := c.Current(); ok {
			t.Fatalf("expected popup hidden")
		}
	}

	// Hiding an already hidden popup is silent.
	c.Close()

	want := []Reason{ReasonClosed, ReasonDragStart, ReasonZoom, ReasonRebuild}
	if len(reasons) != len(want) {
		t.Fatalf("expected %v, got %v", want, reasons)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, reasons)
		}
	}
}

func TestController_NeverTwoPopups(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Show(venue.Entity{Slug: "a"}, float64(i), 0)
		}(i)
		go func() {
			defer wg.Done()
			if s, ok := c.Current(); ok && s.Entity.Slug != "a" {
				t.Errorf("unexpected popup %+v", s)
			}
		}()
	}
	wg.Wait()
}
