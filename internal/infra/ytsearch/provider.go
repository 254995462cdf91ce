// Package ytsearch provides keyless YouTube search by scraping the results page.
package ytsearch

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	yts "github.com/ppalone/ytsearch"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Provider is a search and lookup provider backed by the YouTube results page.
type Provider struct {
	client *yts.Client
}

// New creates a provider. A nil httpClient uses the library default.
func New(httpClient *http.Client) *Provider {
	return &Provider{client: yts.NewClient(httpClient)}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ytsearch"
}

// Search returns up to limit videos in result page order.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	res, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "ytsearch failed")
	}

	tracks := make([]track.Track, 0, limit)
	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		tracks = append(tracks, toTrack(r.VideoID, r.Title, r.Channel, r.Duration))
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

// Lookup searches for the ID itself and keeps only an exact video match.
func (p *Provider) Lookup(ctx context.Context, id string) (*track.Track, error) {
	res, err := p.client.Search(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "ytsearch lookup failed")
	}
	for _, r := range res.Results {
		if r.VideoID == id {
			t := toTrack(r.VideoID, r.Title, r.Channel, r.Duration)
			return &t, nil
		}
	}
	return nil, nil
}

// toTrack builds a track from a result row. Durations come in clock form ("3:20").
func toTrack(id, title, channel, duration string) track.Track {
	t := track.Track{
		ID:        id,
		Title:     title,
		Artist:    channel,
		Thumbnail: track.ThumbnailURL(id),
		URL:       track.WatchURL(id),
	}
	if duration != "" {
		d, err := track.ParseDuration(duration)
		if err != nil {
			zlog.Debug().Msgf("unparseable result duration: id=%s duration=%q", id, duration)
		} else {
			t.Duration = d
		}
	}
	return t
}
