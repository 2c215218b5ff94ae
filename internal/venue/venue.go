// Package venue turns authored content records into the normalised entities
// the archive map works with.
package venue

import (
	"sort"
	"strings"

	"club_archive/core-go/internal/content"
	"club_archive/core-go/internal/geo"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// AllStatuses is the fixed status facet, in display order.
func AllStatuses() []Status {
	return []Status{StatusActive, StatusClosed}
}

// ParseStatus maps a raw status to its canonical value: only the exact
// string "closed" is closed, everything else is active.
func ParseStatus(raw string) Status {
	if raw == string(StatusClosed) {
		return StatusClosed
	}
	return StatusActive
}

// Entity is one venue as shown on the map.
type Entity struct {
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Location     geo.LatLng `json:"location"`
	Status       Status     `json:"status"`
	Neighborhood string     `json:"neighborhood"`
	Tags         []string   `json:"tags"`
}

// Mappable reports whether the entity can be placed on the map.
func (e Entity) Mappable() bool {
	return e.Location.Valid()
}

// UnknownNeighborhood is given to venues without a neighbourhood so they
// still belong to a value of the neighbourhood facet.
const UnknownNeighborhood = "Unknown"

// Defaults is the single table of values used when a record omits a field.
var Defaults = struct {
	Title        string
	Slug         string
	Location     geo.LatLng
	Status       Status
	Neighborhood string
}{
	Title:        "Untitled",
	Slug:         "",
	Location:     geo.LatLng{},
	Status:       StatusActive,
	Neighborhood: UnknownNeighborhood,
}

// ToMapEntity copies the declared fields of rec into an Entity, filling
// defaults for anything missing. rec is not modified.
func ToMapEntity(rec content.Record) Entity {
	e := Entity{
		Title:        strings.TrimSpace(rec.Title),
		Slug:         strings.TrimSpace(rec.Slug),
		Location:     Defaults.Location,
		Status:       ParseStatus(rec.Status),
		Neighborhood: strings.TrimSpace(rec.Neighborhood),
		Tags:         NormalizeTags(rec.Tags),
	}
	if e.Title == "" {
		e.Title = Defaults.Title
	}
	if e.Slug == "" {
		e.Slug = Defaults.Slug
	}
	if e.Neighborhood == "" {
		e.Neighborhood = Defaults.Neighborhood
	}
	if rec.Location != nil {
		e.Location = *rec.Location
	}
	return e
}

// NormalizeTags trims, drops empties and duplicates, and sorts. It always
// returns a fresh slice.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Rejection explains why a record did not make it onto the map.
type Rejection struct {
	Slug   string
	Reason string
}

// FromRecords transforms every record and keeps the mappable ones, in input
// order. A later record reusing an earlier non-empty slug is rejected.
func FromRecords(recs []content.Record) ([]Entity, []Rejection) {
	out := make([]Entity, 0, len(recs))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		e := ToMapEntity(rec)
		if !e.Mappable() {
			rejected = append(rejected, Rejection{Slug: e.Slug, Reason: "no usable location"})
			continue
		}
		if e.Slug != "" {
			if _, dup := seen[e.Slug]; dup {
				rejected = append(rejected, Rejection{Slug: e.Slug, Reason: "duplicate slug"})
				continue
			}
			seen[e.Slug] = struct{}{}
		}
		out = append(out, e)
	}
	return out, rejected
}

// Neighborhoods returns the sorted unique non-empty neighbourhoods.
func Neighborhoods(entities []Entity) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, e := range entities {
		if e.Neighborhood == "" {
			continue
		}
		if _, ok := seen[e.Neighborhood]; ok {
			continue
		}
		seen[e.Neighborhood] = struct{}{}
		out = append(out, e.Neighborhood)
	}
	sort.Strings(out)
	return out
}

// Colocated groups mappable entities sharing the same spot, keyed by the
// first slug in each group. Only groups of two or more are returned.
func Colocated(entities []Entity) map[string][]string {
	byCell := map[uint64][]string{}
	var order []uint64
	for _, e := range entities {
		if !e.Mappable() {
			continue
		}
		key := uint64(geo.CellKey(e.Location))
		if _, ok := byCell[key]; !ok {
			order = append(order, key)
		}
		byCell[key] = append(byCell[key], e.Slug)
	}

	out := map[string][]string{}
	for _, key := range order {
		if slugs := byCell[key]; len(slugs) > 1 {
			out[slugs[0]] = slugs
		}
	}
	return out
}
