// Package filter holds the three-facet filter state of the archive map and
// the pure operations over it. States are values: every operation returns a
// new State and never touches the one it was given.
package filter

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"club_archive/core-go/internal/venue"
)

type Facet string

const (
	FacetNeighborhoods Facet = "neighborhoods"
	FacetTags          Facet = "tags"
	FacetStatuses      Facet = "statuses"
)

func ParseFacet(s string) (Facet, error) {
	switch Facet(strings.ToLower(strings.TrimSpace(s))) {
	case FacetNeighborhoods, "neighborhood":
		return FacetNeighborhoods, nil
	case FacetTags, "tag":
		return FacetTags, nil
	case FacetStatuses, "status":
		return FacetStatuses, nil
	default:
		return "", fmt.Errorf("unknown facet %q", s)
	}
}

// State is the selected values per facet. An empty selection places no
// restriction on its facet.
type State struct {
	Neighborhoods []string `json:"neighborhoods"`
	Tags          []string `json:"tags"`
	Statuses      []string `json:"statuses"`
}

// Facets lists the values a user can pick from.
type Facets struct {
	Neighborhoods []string `json:"neighborhoods"`
	Tags          []string `json:"tags"`
	Statuses      []string `json:"statuses"`
}

// DeriveFacets collects sorted unique non-empty neighbourhoods and tags from
// entities. Statuses are always the fixed pair.
func DeriveFacets(entities []venue.Entity) Facets {
	tagSet := map[string]struct{}{}
	for _, e := range entities {
		for _, t := range e.Tags {
			if t != "" {
				tagSet[t] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	statuses := make([]string, 0, 2)
	for _, s := range venue.AllStatuses() {
		statuses = append(statuses, string(s))
	}

	return Facets{
		Neighborhoods: venue.Neighborhoods(entities),
		Tags:          tags,
		Statuses:      statuses,
	}
}

// Initial selects every known neighbourhood and nothing else.
func Initial(allNeighborhoods []string) State {
	return State{
		Neighborhoods: slices.Clone(nonNil(allNeighborhoods)),
		Tags:          []string{},
		Statuses:      []string{},
	}
}

// Reset is Initial; kept as its own name for the reset action.
func Reset(allNeighborhoods []string) State {
	return Initial(allNeighborhoods)
}

// Apply returns the entities passing every non-empty facet selection, in
// input order. Tags match if any one of the entity's tags is selected.
func Apply(entities []venue.Entity, s State) []venue.Entity {
	neighborhoods := toSet(s.Neighborhoods)
	tags := toSet(s.Tags)
	statuses := toSet(s.Statuses)

	out := make([]venue.Entity, 0, len(entities))
	for _, e := range entities {
		if len(neighborhoods) > 0 {
			if _, ok := neighborhoods[e.Neighborhood]; !ok {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[string(e.Status)]; !ok {
				continue
			}
		}
		if len(tags) > 0 && !anyIn(e.Tags, tags) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Toggle adds value to the facet selection if absent and removes it if
// present.
func Toggle(s State, facet Facet, value string) State {
	next := s.Clone()
	switch facet {
	case FacetNeighborhoods:
		next.Neighborhoods = toggle(next.Neighborhoods, value)
	case FacetTags:
		next.Tags = toggle(next.Tags, value)
	case FacetStatuses:
		next.Statuses = toggle(next.Statuses, value)
	}
	return next
}

// HasActive reports whether s differs from the initial state. A differing
// neighbourhood count stands in for "not every neighbourhood is selected".
func HasActive(s State, allNeighborhoods []string) bool {
	return len(s.Tags) > 0 ||
		len(s.Statuses) > 0 ||
		len(s.Neighborhoods) != len(allNeighborhoods)
}

func (s State) Clone() State {
	return State{
		Neighborhoods: slices.Clone(nonNil(s.Neighborhoods)),
		Tags:          slices.Clone(nonNil(s.Tags)),
		Statuses:      slices.Clone(nonNil(s.Statuses)),
	}
}

func (s State) Selection(facet Facet) []string {
	switch facet {
	case FacetNeighborhoods:
		return slices.Clone(s.Neighborhoods)
	case FacetTags:
		return slices.Clone(s.Tags)
	case FacetStatuses:
		return slices.Clone(s.Statuses)
	default:
		return nil
	}
}

func toggle(values []string, value string) []string {
	if i := slices.Index(values, value); i >= 0 {
		return slices.Delete(values, i, i+1)
	}
	return append(values, value)
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
