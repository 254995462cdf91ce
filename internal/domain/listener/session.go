// Package listener provides the per chat-user request session.
package listener

import "time"

// Session tracks one chat user's requests for the lifetime of the process.
type Session struct {
	ID            string     // Chat platform user ID
	DisplayName   string     // Last seen display name
	PendingTracks int        // Admitted tracks that have not started yet
	DJ            bool       // DJ users bypass request limits
	FirstSeenAt   time.Time  // First request time
	TotalRequests int        // Total admitted requests
	LastRequestAt *time.Time // Last admitted request time
}

// NewSession creates a new listener session.
func NewSession(id, displayName string, dj bool) *Session {
	return &Session{
		ID:          id,
		DisplayName: displayName,
		DJ:          dj,
		FirstSeenAt: time.Now(),
	}
}

// IncrementPendingTracks records an admitted request.
func (s *Session) IncrementPendingTracks() {
	s.PendingTracks++
	s.TotalRequests++
	now := time.Now()
	s.LastRequestAt = &now
}

// DecrementPendingTracks is called when a requested track starts or leaves the queue.
func (s *Session) DecrementPendingTracks() {
	if s.PendingTracks > 0 {
		s.PendingTracks--
	}
}

// CanRequest reports whether another request fits under maxPending.
// maxPending <= 0 means unlimited.
func (s *Session) CanRequest(maxPending int) bool {
	if s.DJ || maxPending <= 0 {
		return true
	}
	return s.PendingTracks < maxPending
}
