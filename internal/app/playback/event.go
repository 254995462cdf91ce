package playback

import "github.com/osa030/radiobox/internal/domain/track"

// EventType represents a sequencer event type.
type EventType int

const (
	EventTrackLoading   EventType = iota // Track popped, stream resolution started
	EventTrackStarted                    // Stream handed to the transport
	EventTrackEnded                      // Track finished on its own
	EventTrackSkipped                    // Track was skipped
	EventTrackFailed                     // Stream resolution or transport start failed
	EventStateChanged                    // Pause, resume or stop
	EventRadioExtended                   // Radio appended continuations
	EventQueueEmpty                      // Nothing left to play
	EventPlaybackHalted                  // Too many consecutive failures
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoading:
		return "track_loading"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	case EventRadioExtended:
		return "radio_extended"
	case EventQueueEmpty:
		return "queue_empty"
	case EventPlaybackHalted:
		return "playback_halted"
	default:
		return "unknown"
	}
}

// Event represents a sequencer event.
type Event struct {
	Type   EventType
	Track  *track.QueuedTrack  // Subject track (nil for some events)
	State  State               // State after the event
	Tracks []track.QueuedTrack // Radio continuations or tracks removed by stop
	Err    error               // Failure cause for EventTrackFailed
}
