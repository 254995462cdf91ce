// Package ytmusic provides track search against YouTube Music.
package ytmusic

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	ytm "github.com/raitonoberu/ytmusic"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Provider searches YouTube Music's song shelf.
type Provider struct{}

// New creates a provider.
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ytmusic"
}

type searchResult struct {
	tracks []track.Track
	err    error
}

// Search returns up to limit songs. The library call is not cancellable,
// so ctx only bounds how long the caller waits for it.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "ytmusic search canceled")
	}

	done := make(chan searchResult, 1)
	go func() {
		tracks, err := search(query, limit)
		done <- searchResult{tracks: tracks, err: err}
	}()

	select {
	case r := <-done:
		return r.tracks, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "ytmusic search canceled")
	}
}

func search(query string, limit int) ([]track.Track, error) {
	res, err := ytm.TrackSearch(query).Next()
	if err != nil {
		return nil, errors.Wrap(err, "ytmusic search failed")
	}

	tracks := make([]track.Track, 0, limit)
	for _, item := range res.Tracks {
		if item.VideoID == "" {
			continue
		}
		names := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			names = append(names, a.Name)
		}
		tracks = append(tracks, toTrack(item.VideoID, item.Title, names))
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

// toTrack keeps the first credited artist. Song rows carry no parseable duration,
// so duration stays unknown.
func toTrack(id, title string, artists []string) track.Track {
	artist := ""
	if len(artists) > 0 {
		artist = strings.TrimSpace(artists[0])
	}
	return track.Track{
		ID:        id,
		Title:     title,
		Artist:    artist,
		Thumbnail: track.ThumbnailURL(id),
		URL:       track.WatchURL(id),
	}
}
