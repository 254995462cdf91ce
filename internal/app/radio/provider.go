// Package radio finds related tracks for radio-mode continuation.
package radio

import (
	"context"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Provider is a similarity source. Given a seed it returns related tracks in the
// source's own order. An error means the source could not be consulted at all;
// an empty result means it was consulted and had nothing.
type Provider interface {
	Related(ctx context.Context, seed track.Track, limit int) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// Searcher is the keyword search and lookup path of the track resolver.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []track.Track
	ResolveByID(ctx context.Context, id string) (track.Track, error)
}

// MixSource lists the auto-generated mix playlist seeded by a video.
type MixSource interface {
	Mix(ctx context.Context, videoID string, limit int) ([]track.Track, error)
}
