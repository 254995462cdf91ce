package radio

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// overfetch asks sources for extra entries to survive filtering.
const overfetch = 2

// Finder produces radio continuations for a seed track.
// The provider chain is consulted first; if it fails outright the finder falls back
// to a keyword search built from the seed's title and artist.
type Finder struct {
	chain       *ProviderChain
	search      Searcher
	maxDuration time.Duration
	timeout     time.Duration
}

// NewFinder creates a Finder. maxDuration zero disables the ceiling; timeout zero disables the deadline.
func NewFinder(chain *ProviderChain, search Searcher, maxDuration, timeout time.Duration) *Finder {
	return &Finder{
		chain:       chain,
		search:      search,
		maxDuration: maxDuration,
		timeout:     timeout,
	}
}

// Related returns up to maxResults tracks related to seed, excluding the seed itself
// and anything over the duration ceiling. It never fails; total failure is an empty list.
func (f *Finder) Related(ctx context.Context, seed track.Track, maxResults int) []track.Track {
	if maxResults <= 0 {
		return []track.Track{}
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if f.chain != nil && f.chain.Len() > 0 {
		candidates, err := f.chain.Related(ctx, seed, maxResults*overfetch+1)
		if err == nil {
			result := f.filter(seed, candidates, maxResults)
			zlog.Info().Msgf("radio related: seed=%s strategy=primary candidates=%d selected=%d",
				seed.ID, len(candidates), len(result))
			return result
		}
		zlog.Warn().Msgf("radio primary strategy failed, falling back to search: seed=%s error=%v", seed.ID, err)
	}

	return f.fallback(ctx, seed, maxResults)
}

func (f *Finder) fallback(ctx context.Context, seed track.Track, maxResults int) []track.Track {
	if f.search == nil {
		return []track.Track{}
	}

	if seed.Title == "" {
		full, err := f.search.ResolveByID(ctx, seed.ID)
		if err != nil {
			zlog.Warn().Msgf("radio fallback could not fetch seed metadata: seed=%s error=%v", seed.ID, err)
			return []track.Track{}
		}
		seed.Title, seed.Artist = full.Title, full.Artist
	}

	query := FallbackQuery(seed.Title, seed.Artist)
	if query == "" {
		return []track.Track{}
	}

	candidates := f.search.Search(ctx, query, maxResults*overfetch+1)
	result := f.filter(seed, candidates, maxResults)
	zlog.Info().Msgf("radio related: seed=%s strategy=fallback query=%q candidates=%d selected=%d",
		seed.ID, query, len(candidates), len(result))
	return result
}

// filter keeps source order, drops the seed, duplicates and over-long tracks, and stops at max.
func (f *Finder) filter(seed track.Track, candidates []track.Track, max int) []track.Track {
	result := make([]track.Track, 0, max)
	seen := map[string]bool{seed.ID: true}
	for _, c := range candidates {
		if len(result) >= max {
			break
		}
		if c.ID == "" || seen[c.ID] {
			continue
		}
		if c.ExceedsDuration(f.maxDuration) {
			continue
		}
		seen[c.ID] = true
		result = append(result, c)
	}
	return result
}
