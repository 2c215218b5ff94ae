// Package archivemap is the consumer-facing archive map: it loads the venue
// catalog and runs one stateful map view per session on top of the filter
// engine, marker manager and popup controller.
package archivemap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"club_archive/core-go/internal/content"
	"club_archive/core-go/internal/venue"
)

// Catalog is the mappable venue set shared by every session.
type Catalog struct {
	Entities      []venue.Entity
	Neighborhoods []string
	Rejected      []venue.Rejection
	Colocated     map[string][]string
}

// LoadCatalog lists the repository and keeps the mappable venues. Individual
// bad records are reported, never fatal.
func LoadCatalog(ctx context.Context, log zerolog.Logger, repo content.Repository) (Catalog, error) {
	recs, err := repo.ListRecords(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("list records: %w", err)
	}

	entities, rejected := venue.FromRecords(recs)
	for _, r := range rejected {
		log.Warn().Str("slug", r.Slug).Str("reason", r.Reason).Msg("venue left off the map")
	}

	colocated := venue.Colocated(entities)
	for first, slugs := range colocated {
		log.Warn().Str("slug", first).Strs("colocated", slugs).Msg("venues share a location")
	}

	log.Info().
		Int("records", len(recs)).
		Int("mappable", len(entities)).
		Int("rejected", len(rejected)).
		Msg("catalog loaded")

	return Catalog{
		Entities:      entities,
		Neighborhoods: venue.Neighborhoods(entities),
		Rejected:      rejected,
		Colocated:     colocated,
	}, nil
}

