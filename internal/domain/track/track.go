// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// RadioRequesterName is the requester label attached to tracks added by radio mode.
const RadioRequesterName = "📻 Radio"

// Track represents a playable video from the video-sharing provider.
// Built only by the resolver and the related-track finder.
type Track struct {
	ID        string        // Provider video ID
	Title     string        // Display title
	Artist    string        // Channel or artist name
	Thumbnail string        // Thumbnail URL
	Duration  time.Duration // Zero when the provider did not report one
	URL       string        // Playable reference, resolved to a stream at play time
}

// HasDuration reports whether the provider supplied a duration.
func (t Track) HasDuration() bool {
	return t.Duration > 0
}

// ExceedsDuration reports whether the track is known to be longer than max.
// Tracks with unknown duration never exceed.
func (t Track) ExceedsDuration(max time.Duration) bool {
	return max > 0 && t.HasDuration() && t.Duration > max
}

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser     RequesterType = "USER"
	RequesterTypeRadio    RequesterType = "RADIO"
	RequesterTypePlaylist RequesterType = "PLAYLIST"
)

// String returns the string representation of the requester type.
func (r RequesterType) String() string {
	return string(r)
}

// Requester represents whoever asked for the track.
type Requester struct {
	ID   string        // Chat user ID (empty for radio)
	Name string        // Display name
	Type RequesterType // Type of requester
}

// RadioRequester returns the requester used for radio continuations.
func RadioRequester() Requester {
	return Requester{Name: RadioRequesterName, Type: RequesterTypeRadio}
}

// QueuedTrack represents a track in the playback queue.
type QueuedTrack struct {
	Track     Track     // Track metadata
	Requester Requester // Requester info
	AddedAt   time.Time // Time when added to queue
}

// RequestedBy returns the requester display label.
func (q QueuedTrack) RequestedBy() string {
	return q.Requester.Name
}

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ThumbnailURL returns the medium quality thumbnail URL for a video ID.
func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", id)
}
