// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Playlist represents a provider playlist expanded into tracks.
type Playlist struct {
	ID     string        // Provider playlist ID
	Title  string        // Playlist title
	URL    string        // Source URL
	Tracks []track.Track // Tracks in playlist order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the summed duration of tracks with a known duration.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Head returns at most n tracks from the front of the playlist.
func (p *Playlist) Head(n int) []track.Track {
	if n < 0 {
		n = 0
	}
	if n > len(p.Tracks) {
		n = len(p.Tracks)
	}
	return p.Tracks[:n]
}
