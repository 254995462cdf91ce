// Package queue provides the persisted playback queue.
package queue

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
)

// Errors
var (
	ErrEmptyQueue       = errors.New("queue is empty")
	ErrOutOfRange       = errors.New("position out of range")
	ErrInsufficientSize = errors.New("need at least 2 tracks to shuffle")
)

// Snapshotter persists the queue between restarts.
type Snapshotter interface {
	Load() ([]track.QueuedTrack, error)
	Save(tracks []track.QueuedTrack) error
}

// Store is the ordered pending-playback list. Front is next to play.
// Every mutation is followed by a snapshot save; save failures are logged only.
type Store struct {
	mu     sync.RWMutex
	tracks []track.QueuedTrack
	snap   Snapshotter

	// shuffle swaps through this so tests can pin the permutation.
	shuffle func(n int, swap func(i, j int))
}

// NewStore creates a store and loads the snapshot. A load failure yields an empty queue.
// snap may be nil to disable persistence.
func NewStore(snap Snapshotter) *Store {
	s := &Store{
		tracks:  make([]track.QueuedTrack, 0),
		snap:    snap,
		shuffle: rand.Shuffle,
	}

	if snap != nil {
		loaded, err := snap.Load()
		if err != nil {
			zlog.Warn().Msgf("queue: failed to load snapshot, starting empty: %v", err)
		} else if len(loaded) > 0 {
			s.tracks = append(s.tracks, loaded...)
			zlog.Info().Msgf("queue: loaded snapshot: count=%d", len(loaded))
		}
	}
	return s
}

// Append adds tracks to the back of the queue and returns the new length.
func (s *Store) Append(qts ...track.QueuedTrack) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, qt := range qts {
		if qt.AddedAt.IsZero() {
			qt.AddedAt = now
		}
		s.tracks = append(s.tracks, qt)
	}
	s.persistLocked()
	return len(s.tracks)
}

// PopFront removes and returns the first track.
func (s *Store) PopFront() (track.QueuedTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) == 0 {
		return track.QueuedTrack{}, ErrEmptyQueue
	}
	qt := s.tracks[0]
	s.tracks[0] = track.QueuedTrack{}
	s.tracks = s.tracks[1:]
	s.persistLocked()
	return qt, nil
}

// RemoveAt removes the track at a 1-based position.
func (s *Store) RemoveAt(position int) (track.QueuedTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(position); err != nil {
		return track.QueuedTrack{}, err
	}
	i := position - 1
	qt := s.tracks[i]
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	s.persistLocked()
	return qt, nil
}

// Move removes the track at from and reinserts it at to (both 1-based).
// to is counted against the queue after removal, like a list splice.
func (s *Store) Move(from, to int) (track.QueuedTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(from); err != nil {
		return track.QueuedTrack{}, err
	}
	if err := s.checkLocked(to); err != nil {
		return track.QueuedTrack{}, err
	}

	i, j := from-1, to-1
	qt := s.tracks[i]
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	s.tracks = append(s.tracks, track.QueuedTrack{})
	copy(s.tracks[j+1:], s.tracks[j:])
	s.tracks[j] = qt
	s.persistLocked()
	return qt, nil
}

// Shuffle permutes the queue uniformly at random.
func (s *Store) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) < 2 {
		return ErrInsufficientSize
	}
	s.shuffle(len(s.tracks), func(i, j int) {
		s.tracks[i], s.tracks[j] = s.tracks[j], s.tracks[i]
	})
	s.persistLocked()
	return nil
}

// Clear empties the queue and returns what was removed.
func (s *Store) Clear() []track.QueuedTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.tracks
	s.tracks = make([]track.QueuedTrack, 0)
	s.persistLocked()
	return removed
}

// Prune drops every track keep rejects, preserving order, and returns the dropped tracks.
func (s *Store) Prune(keep func(track.QueuedTrack) bool) []track.QueuedTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []track.QueuedTrack
	kept := make([]track.QueuedTrack, 0, len(s.tracks))
	for _, qt := range s.tracks {
		if keep(qt) {
			kept = append(kept, qt)
		} else {
			dropped = append(dropped, qt)
		}
	}
	if len(dropped) > 0 {
		s.tracks = kept
		s.persistLocked()
	}
	return dropped
}

// Len returns the number of queued tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// List returns a copy of the queued tracks.
func (s *Store) List() []track.QueuedTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]track.QueuedTrack, len(s.tracks))
	copy(result, s.tracks)
	return result
}

// TotalDuration returns the summed known duration of queued tracks.
func (s *Store) TotalDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total time.Duration
	for _, qt := range s.tracks {
		total += qt.Track.Duration
	}
	return total
}

func (s *Store) checkLocked(position int) error {
	if position < 1 || position > len(s.tracks) {
		return errors.Wrapf(ErrOutOfRange, "position %d (queue has %d)", position, len(s.tracks))
	}
	return nil
}

// persistLocked saves the snapshot. Must be called with lock held.
func (s *Store) persistLocked() {
	if s.snap == nil {
		return
	}
	if err := s.snap.Save(s.tracks); err != nil {
		zlog.Error().Msgf("queue: failed to save snapshot: count=%d error=%v", len(s.tracks), err)
	}
}
