// Package playback provides the sequencer: the playback state machine that owns the queue
// and decides what plays next.
package playback

// State represents the sequencer state.
type State int

const (
	StateIdle    State = iota // Nothing playing and nothing in flight
	StateLoading              // A track was popped and its stream is being resolved
	StatePlaying              // Stream handed to the transport
	StatePaused               // Playback suspended, resumable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Active reports whether a track is loaded into the transport.
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused
}
