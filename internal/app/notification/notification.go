package notification

import (
	"time"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Type identifies what happened.
type Type string

const (
	TypeInitialState   Type = "initial_state" // First message on a new stream subscription
	TypeNowPlaying     Type = "now_playing"
	TypeTrackLoading   Type = "track_loading"
	TypeTrackFailed    Type = "track_failed"
	TypeTrackEnded     Type = "track_ended"
	TypeTrackSkipped   Type = "track_skipped"
	TypeStateChanged   Type = "state_changed"
	TypeRadioExtended  Type = "radio_extended"
	TypeQueueEmpty     Type = "queue_empty"
	TypeQueueChanged   Type = "queue_changed"
	TypePlaybackHalted Type = "playback_halted"
)

// Notification is a playback event as delivered to subscribers.
type Notification struct {
	SequenceNo  uint64      `json:"sequence_no"`
	Type        Type        `json:"type"`
	Time        time.Time   `json:"time"`
	State       string      `json:"state,omitempty"`
	Track       *TrackInfo  `json:"track,omitempty"`
	Tracks      []TrackInfo `json:"tracks,omitempty"`
	QueueLength int         `json:"queue_length"`
	Message     string      `json:"message,omitempty"`
}

// TrackInfo is the wire form of a queued track.
type TrackInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	DurationSec   int    `json:"duration_sec"`
	URL           string `json:"url"`
	RequestedBy   string `json:"requested_by,omitempty"`
	RequesterType string `json:"requester_type"`
}

// NewTrackInfo converts a queued track. It returns nil for nil input.
func NewTrackInfo(qt *track.QueuedTrack) *TrackInfo {
	if qt == nil {
		return nil
	}
	return &TrackInfo{
		ID:            qt.Track.ID,
		Title:         qt.Track.Title,
		Artist:        qt.Track.Artist,
		Thumbnail:     qt.Track.Thumbnail,
		DurationSec:   int(qt.Track.Duration.Seconds()),
		URL:           qt.Track.URL,
		RequestedBy:   qt.RequestedBy(),
		RequesterType: qt.Requester.Type.String(),
	}
}

// NewTrackInfos converts a list of queued tracks.
func NewTrackInfos(qts []track.QueuedTrack) []TrackInfo {
	out := make([]TrackInfo, 0, len(qts))
	for i := range qts {
		out = append(out, *NewTrackInfo(&qts[i]))
	}
	return out
}
