// Package providers defines the metadata catalog capability the
// matcher consumes. Implementations live in subpackages.
package providers

import (
	"context"
	"errors"

	"github.com/amaumene/renamarr/internal/models"
)

// ErrUnavailable marks network or auth failures, distinguishable from
// a search that legitimately returned zero results.
var ErrUnavailable = errors.New("metadata provider unavailable")

// Query is one catalog search request.
type Query struct {
	Title     string
	Year      int             // 0 = no year filter
	MediaType models.MediaType // narrows the search endpoint
}

// Provider is a metadata catalog (TMDB, TVDB, ...).
type Provider interface {
	// ID returns the provider identifier recorded on candidates.
	ID() string

	// Search returns zero or more candidates for a query. A nil error
	// with an empty slice means "no results"; failures wrap
	// ErrUnavailable.
	Search(ctx context.Context, query Query) ([]models.Candidate, error)

	// ResolveEpisode looks up the title of one episode of a show.
	ResolveEpisode(ctx context.Context, externalID string, season, episode int) (string, error)

	// Details fetches the full metadata record for a candidate.
	Details(ctx context.Context, candidate models.Candidate) (*models.Metadata, error)
}
