package headless

import (
	"sort"
	"sync"

	"club_archive/core-go/internal/mapprovider"
)

// listeners is a per-object event handler registry.
type listeners struct {
	mu      sync.Mutex
	next    int
	byEvent map[mapprovider.Event]map[int]func()
}

type handle struct {
	owner *listeners
	ev    mapprovider.Event
	id    int
	once  sync.Once
}

func (h *handle) Remove() {
	h.once.Do(func() {
		h.owner.mu.Lock()
		defer h.owner.mu.Unlock()
		delete(h.owner.byEvent[h.ev], h.id)
	})
}

func (l *listeners) add(ev mapprovider.Event, fn func()) mapprovider.Listener {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byEvent == nil {
		l.byEvent = map[mapprovider.Event]map[int]func(){}
	}
	if l.byEvent[ev] == nil {
		l.byEvent[ev] = map[int]func(){}
	}
	l.next++
	l.byEvent[ev][l.next] = fn
	return &handle{owner: l, ev: ev, id: l.next}
}

// fire runs the handlers for ev in registration order, outside the lock so
// handlers may register or remove listeners themselves.
func (l *listeners) fire(ev mapprovider.Event) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.byEvent[ev]))
	for id := range l.byEvent[ev] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.byEvent[ev][id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, fns := range l.byEvent {
		n += len(fns)
	}
	return n
}
