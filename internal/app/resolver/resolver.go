package resolver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Errors
var (
	ErrNotFound            = errors.New("track not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Resolver resolves search queries and video IDs through ordered provider chains.
type Resolver struct {
	searchers []SearchProvider
	lookups   []LookupProvider
	durations []DurationProvider
	timeout   time.Duration
}

// New creates a resolver. timeout bounds each provider call; zero disables it.
func New(searchers []SearchProvider, lookups []LookupProvider, timeout time.Duration) *Resolver {
	r := &Resolver{
		searchers: searchers,
		lookups:   lookups,
		timeout:   timeout,
	}
	for _, l := range lookups {
		if d, ok := l.(DurationProvider); ok {
			r.durations = append(r.durations, d)
		}
	}
	return r
}

// Search returns up to limit tracks from the first provider that answers with results.
// Provider failures are logged and the next provider is tried; total failure yields an empty list.
func (r *Resolver) Search(ctx context.Context, query string, limit int) []track.Track {
	if query == "" || limit <= 0 {
		return []track.Track{}
	}

	for i, p := range r.searchers {
		results, err := r.searchOne(ctx, p, query, limit)
		if err != nil {
			zlog.Warn().Msgf("search provider failed, trying next: index=%d provider=%s query=%q error=%v",
				i+1, p.Name(), query, err)
			continue
		}
		if len(results) == 0 {
			zlog.Debug().Msgf("search provider returned no results: provider=%s query=%q", p.Name(), query)
			continue
		}
		if len(results) > limit {
			results = results[:limit]
		}
		zlog.Debug().Msgf("search resolved: provider=%s query=%q count=%d", p.Name(), query, len(results))
		return results
	}

	zlog.Info().Msgf("search found nothing: query=%q providers=%d", query, len(r.searchers))
	return []track.Track{}
}

func (r *Resolver) searchOne(ctx context.Context, p SearchProvider, query string, limit int) ([]track.Track, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	results, err := p.Search(ctx, query, limit)
	if err != nil {
		return nil, markUnavailable(err)
	}
	return results, nil
}

// ResolveByID fetches a single track by video ID.
// Returns ErrNotFound when every provider answered without a match,
// and ErrProviderUnavailable when none of them answered at all.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (track.Track, error) {
	if id == "" {
		return track.Track{}, ErrNotFound
	}

	var lastErr error
	answered := false
	for _, p := range r.lookups {
		t, err := r.lookupOne(ctx, p, id)
		if err != nil {
			zlog.Warn().Msgf("lookup provider failed, trying next: provider=%s id=%s error=%v", p.Name(), id, err)
			lastErr = err
			continue
		}
		answered = true
		if t != nil {
			return *t, nil
		}
	}

	if answered || lastErr == nil {
		return track.Track{}, errors.Wrapf(ErrNotFound, "video %s", id)
	}
	return track.Track{}, errors.Wrapf(lastErr, "lookup %s", id)
}

func (r *Resolver) lookupOne(ctx context.Context, p LookupProvider, id string) (*track.Track, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	t, err := p.Lookup(ctx, id)
	if err != nil {
		return nil, markUnavailable(err)
	}
	return t, nil
}

// Durations returns known durations for ids from the first duration provider that answers.
// With no provider or every provider failing the result is empty and durations stay unknown.
func (r *Resolver) Durations(ctx context.Context, ids []string) map[string]time.Duration {
	if len(ids) == 0 {
		return map[string]time.Duration{}
	}
	for _, p := range r.durations {
		result, err := r.durationsOne(ctx, p, ids)
		if err != nil {
			zlog.Warn().Msgf("duration provider failed, trying next: provider=%s ids=%d error=%v", p.Name(), len(ids), err)
			continue
		}
		return result
	}
	return map[string]time.Duration{}
}

func (r *Resolver) durationsOne(ctx context.Context, p DurationProvider, ids []string) (map[string]time.Duration, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return p.Durations(ctx, ids)
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func markUnavailable(err error) error {
	return errors.Mark(err, ErrProviderUnavailable)
}
