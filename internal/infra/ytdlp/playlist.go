package ytdlp

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	ytget "github.com/ytget/ytdlp/v2"

	"github.com/osa030/radiobox/internal/domain/playlist"
	"github.com/osa030/radiobox/internal/domain/track"
)

// PlaylistImporter expands YouTube playlists into tracks.
type PlaylistImporter struct{}

// NewPlaylistImporter creates a PlaylistImporter.
func NewPlaylistImporter() *PlaylistImporter {
	return &PlaylistImporter{}
}

// Import fetches up to limit playlist items in order. Items carry no duration.
func (p *PlaylistImporter) Import(ctx context.Context, playlistID string, limit int) (*playlist.Playlist, error) {
	if playlistID == "" {
		return nil, errors.New("playlist id is required")
	}
	if limit < 0 {
		limit = 0
	}

	items, err := ytget.New().GetPlaylistItemsAll(ctx, playlistID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist items for %s", playlistID)
	}

	pl := &playlist.Playlist{
		ID:     playlistID,
		Title:  playlistID,
		URL:    "https://www.youtube.com/playlist?list=" + playlistID,
		Tracks: make([]track.Track, 0, len(items)),
	}
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		pl.Tracks = append(pl.Tracks, track.Track{
			ID:        it.VideoID,
			Title:     it.Title,
			Thumbnail: track.ThumbnailURL(it.VideoID),
			URL:       track.WatchURL(it.VideoID),
		})
	}
	if limit > 0 && len(pl.Tracks) > limit {
		pl.Tracks = pl.Tracks[:limit]
	}

	zlog.Debug().Msgf("imported playlist: id=%s items=%d", playlistID, len(pl.Tracks))
	return pl, nil
}
