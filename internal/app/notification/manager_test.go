package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/radiobox/internal/domain/track"
)

type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Send(n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, *n)
	return nil
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a, b := &recorder{}, &recorder{}
	m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Type: TypeNowPlaying})
	m.Unsubscribe(idB)
	m.Broadcast(&Notification{Type: TypeQueueEmpty})

	require.Len(t, a.got, 2)
	assert.Equal(t, uint64(1), a.got[0].SequenceNo)
	assert.Equal(t, uint64(2), a.got[1].SequenceNo)
	assert.False(t, a.got[0].Time.IsZero())

	require.Len(t, b.got, 1)
	assert.Equal(t, TypeNowPlaying, b.got[0].Type)
}

func TestManager_BroadcastSlowAndFailingSubscribers(t *testing.T) {
	m := NewManager()
	block := make(chan struct{})
	defer close(block)

	m.Subscribe(StreamFunc(func(*Notification) error {
		<-block
		return nil
	}))
	m.Subscribe(StreamFunc(func(*Notification) error {
		return errors.New("gone")
	}))
	fast := &recorder{}
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(&Notification{Type: TypeStateChanged})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, fast.got, 1)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recorder{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestNewTrackInfo(t *testing.T) {
	assert.Nil(t, NewTrackInfo(nil))

	qt := track.QueuedTrack{
		Track:     track.Track{ID: "abc", Title: "Song", Duration: 245 * time.Second},
		Requester: track.RadioRequester(),
	}
	info := NewTrackInfo(&qt)
	assert.Equal(t, 245, info.DurationSec)
	assert.Equal(t, track.RadioRequesterName, info.RequestedBy)
	assert.Equal(t, "RADIO", info.RequesterType)

	assert.Len(t, NewTrackInfos([]track.QueuedTrack{qt, qt}), 2)
}
