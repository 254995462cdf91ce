// Package notification provides the notification manager for broadcasting playback events.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// sendTimeout bounds a single subscriber send.
const sendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(*Notification) error

// Send calls f(n).
func (f StreamFunc) Send(n *Notification) error {
	return f(n)
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps n with the next sequence number and sends it to every subscriber.
// Each send runs in its own goroutine and is abandoned after sendTimeout.
func (m *Manager) Broadcast(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification send failed: subscription=%s type=%s error=%v", s.id, n.Type, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification send timed out: subscription=%s type=%s", s.id, n.Type)
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
