package radio

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/radiobox/internal/app/resolver"
	"github.com/osa030/radiobox/internal/domain/track"
)

type fakeProvider struct {
	name    string
	results []track.Track
	err     error
	calls   int
}

func (f *fakeProvider) Related(ctx context.Context, seed track.Track, limit int) ([]track.Track, error) {
	f.calls++
	return f.results, f.err
}

func (f *fakeProvider) Name() string { return f.name }

type fakeSearcher struct {
	results []track.Track
	lookup  map[string]track.Track
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) []track.Track {
	f.queries = append(f.queries, query)
	if len(f.results) > limit {
		return f.results[:limit]
	}
	return f.results
}

func (f *fakeSearcher) ResolveByID(ctx context.Context, id string) (track.Track, error) {
	if t, ok := f.lookup[id]; ok {
		return t, nil
	}
	return track.Track{}, resolver.ErrNotFound
}

func trk(id string, d time.Duration) track.Track {
	return track.Track{ID: id, Title: "title " + id, Artist: "artist", Duration: d, URL: track.WatchURL(id)}
}

func chainOf(providers ...*fakeProvider) *ProviderChain {
	pm := make([]ProviderWithMetadata, len(providers))
	for i, p := range providers {
		pm[i] = ProviderWithMetadata{Provider: p, DisplayName: p.name}
	}
	return NewProviderChain(pm)
}

func idsOf(tracks []track.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

var seed = track.Track{ID: "seed", Title: "Seed Song (Official Video)", Artist: "Seed Artist - Topic"}

func TestFinder_PrimaryFilters(t *testing.T) {
	primary := &fakeProvider{name: "mix", results: []track.Track{
		trk("seed", 3*time.Minute),
		trk("a", 3*time.Minute),
		trk("long", 20*time.Minute),
		trk("b", 0),
		trk("a", 3*time.Minute),
		trk("c", 4*time.Minute),
		trk("d", 4*time.Minute),
	}}
	search := &fakeSearcher{}
	f := NewFinder(chainOf(primary), search, 10*time.Minute, time.Second)

	got := f.Related(context.Background(), seed, 3)
	assert.Equal(t, []string{"a", "b", "c"}, idsOf(got))
	assert.Empty(t, search.queries)
}

func TestFinder_PrimaryEmptyDoesNotFallBack(t *testing.T) {
	primary := &fakeProvider{name: "mix"}
	search := &fakeSearcher{results: []track.Track{trk("x", time.Minute)}}
	f := NewFinder(chainOf(primary), search, 10*time.Minute, 0)

	got := f.Related(context.Background(), seed, 3)
	assert.Empty(t, got)
	assert.Empty(t, search.queries)
}

func TestFinder_FallbackOnFailure(t *testing.T) {
	primary := &fakeProvider{name: "mix", err: errors.New("yt-dlp exited 1")}
	search := &fakeSearcher{results: []track.Track{
		trk("seed", time.Minute),
		trk("x", time.Minute),
		trk("y", 30*time.Minute),
		trk("z", time.Minute),
	}}
	f := NewFinder(chainOf(primary), search, 10*time.Minute, 0)

	got := f.Related(context.Background(), seed, 5)
	assert.Equal(t, []string{"x", "z"}, idsOf(got))
	require.Len(t, search.queries, 1)
	assert.Equal(t, "Seed Artist Seed Song", search.queries[0])
}

func TestFinder_TotalFailureIsEmpty(t *testing.T) {
	primary := &fakeProvider{name: "mix", err: errors.New("down")}
	f := NewFinder(chainOf(primary), &fakeSearcher{}, 10*time.Minute, 0)

	got := f.Related(context.Background(), seed, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFinder_FallbackFetchesMissingTitle(t *testing.T) {
	search := &fakeSearcher{
		lookup:  map[string]track.Track{"seed": {ID: "seed", Title: "Looked Up", Artist: "Band"}},
		results: []track.Track{trk("x", time.Minute)},
	}
	f := NewFinder(nil, search, 0, 0)

	got := f.Related(context.Background(), track.Track{ID: "seed"}, 1)
	assert.Equal(t, []string{"x"}, idsOf(got))
	assert.Equal(t, []string{"Band Looked Up"}, search.queries)
}

func TestFinder_ZeroMax(t *testing.T) {
	primary := &fakeProvider{name: "mix", results: []track.Track{trk("a", 0)}}
	f := NewFinder(chainOf(primary), &fakeSearcher{}, 0, 0)
	assert.Empty(t, f.Related(context.Background(), seed, 0))
	assert.Equal(t, 0, primary.calls)
}

func TestProviderChain_Related(t *testing.T) {
	t.Run("first with results wins", func(t *testing.T) {
		a := &fakeProvider{name: "a", err: errors.New("down")}
		b := &fakeProvider{name: "b"}
		c := &fakeProvider{name: "c", results: []track.Track{trk("1", 0)}}
		d := &fakeProvider{name: "d", results: []track.Track{trk("2", 0)}}

		got, err := chainOf(a, b, c, d).Related(context.Background(), seed, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, idsOf(got))
		assert.Equal(t, 0, d.calls)
	})

	t.Run("answered empty is not a failure", func(t *testing.T) {
		a := &fakeProvider{name: "a", err: errors.New("down")}
		b := &fakeProvider{name: "b"}

		got, err := chainOf(a, b).Related(context.Background(), seed, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("all failed", func(t *testing.T) {
		a := &fakeProvider{name: "a", err: errors.New("down")}

		_, err := chainOf(a).Related(context.Background(), seed, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, resolver.ErrProviderUnavailable))
	})
}
