package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNoMatch is returned when the catalog search yields no results for a
// proposal. The submitting user is not recorded in the ledger, so they
// remain free to retry the same day.
var ErrNoMatch = errors.New("bot: no catalog match")

// DefaultCatalogLimit bounds how many search results the resolver considers.
const DefaultCatalogLimit = 50

// Resolver turns a free-text "song - artist" proposal into a catalog track.
type Resolver struct {
	catalog Catalog
	limit   int
}

// NewResolver creates a Resolver. A limit of zero or less falls back to
// DefaultCatalogLimit.
func NewResolver(catalog Catalog, limit int) *Resolver {
	if limit <= 0 {
		limit = DefaultCatalogLimit
	}
	return &Resolver{catalog: catalog, limit: limit}
}

// Resolve queries the catalog with the raw proposal text and picks a match.
// The first result is the provisional pick; results are then scanned in
// order and the first one whose artist list holds a case-insensitive match
// for the provisional pick's primary artist replaces it. In practice the
// first result matches itself, so the catalog's own relevance ranking
// decides. A fuzzy-matching pass between the proposed artist and all
// result artists was tried and removed: the catalog's ranking beat it.
//
// A proposal missing the " - " separator is not an error; the raw text is
// queried either way.
func (r *Resolver) Resolve(ctx context.Context, proposal string) (Track, error) {
	results, err := r.catalog.Search(ctx, proposal, r.limit)
	if err != nil {
		return Track{}, fmt.Errorf("bot: search %q: %w", proposal, err)
	}
	if len(results) == 0 {
		return Track{}, fmt.Errorf("bot: resolve %q: %w", proposal, ErrNoMatch)
	}

	best := results[0]
scan:
	for _, t := range results {
		for _, artist := range t.Artists {
			if len(best.Artists) > 0 && strings.EqualFold(artist, best.Artists[0]) {
				best = t
				break scan
			}
		}
	}

	log.Printf("bot: resolved %q to %s - %s", proposal, best.Title, primaryArtist(best))
	return best, nil
}

// primaryArtist returns the first listed artist, or "" if the catalog
// returned none.
func primaryArtist(t Track) string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}
