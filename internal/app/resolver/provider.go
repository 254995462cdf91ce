// Package resolver turns user input into Track records.
package resolver

import (
	"context"
	"time"

	"github.com/osa030/radiobox/internal/domain/track"
)

// SearchProvider performs keyword search against a track source.
// Results are in the source's relevance order.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	Name() string
}

// LookupProvider fetches a single video by ID.
// A nil track with a nil error means the source has no such video.
type LookupProvider interface {
	Lookup(ctx context.Context, id string) (*track.Track, error)
	Name() string
}

// DurationProvider fills in durations for known video IDs in bulk.
type DurationProvider interface {
	Durations(ctx context.Context, ids []string) (map[string]time.Duration, error)
	Name() string
}
