package headless

import (
	"sync"

	"club_archive/core-go/internal/geo"
	"club_archive/core-go/internal/mapprovider"
)

type Marker struct {
	mu       sync.Mutex
	position geo.LatLng
	title    string
	content  mapprovider.Content
	m        mapprovider.Map
	events   listeners
}

var _ mapprovider.Marker = (*Marker)(nil)

func newMarker(opts mapprovider.MarkerOptions) *Marker {
	mk := &Marker{
		position: opts.Position,
		title:    opts.Title,
		content:  opts.Content,
	}
	if opts.Map != nil {
		mk.SetMap(opts.Map)
	}
	return mk
}

func (mk *Marker) Position() geo.LatLng {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.position
}

func (mk *Marker) Title() string {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.title
}

func (mk *Marker) Content() mapprovider.Content {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.content
}

func (mk *Marker) Map() mapprovider.Map {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.m
}

func (mk *Marker) SetMap(m mapprovider.Map) {
	mk.mu.Lock()
	prev := mk.m
	mk.m = m
	mk.mu.Unlock()

	if hm, ok := prev.(*Map); ok && prev != m {
		hm.detach(mk)
	}
	if hm, ok := m.(*Map); ok {
		hm.attach(mk)
	}
}

func (mk *Marker) AddListener(ev mapprovider.Event, fn func()) mapprovider.Listener {
	return mk.events.add(ev, fn)
}

func (mk *Marker) Trigger(ev mapprovider.Event) {
	mk.events.fire(ev)
}

func (mk *Marker) ListenerCount() int {
	return mk.events.count()
}
