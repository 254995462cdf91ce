// Package registry keeps per-user request sessions.
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/radiobox/internal/domain/listener"
)

var ErrUnknownListener = errors.New("unknown listener")

// ListenerRegistry manages listener sessions with thread-safe access.
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners map[string]*listener.Session
	djs       map[string]bool
}

// NewListenerRegistry creates a registry; djUserIDs are granted DJ status on first sight.
func NewListenerRegistry(djUserIDs []string) *ListenerRegistry {
	djs := make(map[string]bool, len(djUserIDs))
	for _, id := range djUserIDs {
		djs[id] = true
	}
	return &ListenerRegistry{
		listeners: make(map[string]*listener.Session),
		djs:       djs,
	}
}

// Touch returns the session for userID, creating it if needed.
// The display name is refreshed on every call.
func (r *ListenerRegistry) Touch(userID, displayName string) *listener.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.listeners[userID]; ok {
		if displayName != "" {
			s.DisplayName = displayName
		}
		return s
	}
	s := listener.NewSession(userID, displayName, r.djs[userID])
	r.listeners[userID] = s
	return s
}

// Get retrieves a listener session by user ID.
func (r *ListenerRegistry) Get(userID string) (*listener.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.listeners[userID]
	if !ok {
		return nil, ErrUnknownListener
	}
	return s, nil
}

// IncrementPending increments a listener's pending track count.
func (r *ListenerRegistry) IncrementPending(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.listeners[userID]
	if !ok {
		return ErrUnknownListener
	}
	s.IncrementPendingTracks()
	return nil
}

// DecrementPending decrements a listener's pending track count.
func (r *ListenerRegistry) DecrementPending(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.listeners[userID]; ok {
		s.DecrementPendingTracks()
	}
}

// All returns a copy of every session ordered by total requests, highest first.
func (r *ListenerRegistry) All() []listener.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]listener.Session, 0, len(r.listeners))
	for _, s := range r.listeners {
		result = append(result, *s)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TotalRequests != result[j].TotalRequests {
			return result[i].TotalRequests > result[j].TotalRequests
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Count returns the number of listeners.
func (r *ListenerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
