package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/session"
	"github.com/osa030/radiobox/internal/domain/track"
)

func newTestClient(t *testing.T, token string) (*Client, *fakeSession, *notification.Manager) {
	t.Helper()
	srv, fs, nm := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", token, ts.Client()), fs, nm
}

func TestClient_RoundTrip(t *testing.T) {
	c, fs, _ := newTestClient(t, testToken)
	ctx := context.Background()
	fs.queue = []track.QueuedTrack{queued("a"), queued("b")}
	fs.status = session.Status{Status: playback.Status{State: playback.StatePaused, QueueLength: 2}}

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paused", st.State)

	q, err := c.Queue(ctx)
	require.NoError(t, err)
	assert.Len(t, q.Tracks, 2)

	msg, err := c.Command(ctx, "skip")
	require.NoError(t, err)
	assert.Equal(t, "Track skipped", msg)

	moved, err := c.Move(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", moved.Track.ID)

	st, err = c.SetRadio(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.Radio)

	msg, err = c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Removed 2 tracks", msg)

	_, err = c.History(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.limit)
}

func TestClient_Errors(t *testing.T) {
	c, fs, _ := newTestClient(t, testToken)
	fs.err = playback.ErrNotPlaying

	_, err := c.Command(context.Background(), "pause")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "not playing", apiErr.Message)

	_, err = c.Remove(context.Background(), 3)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	bad, _, _ := newTestClient(t, "wrong")
	_, err = bad.Status(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClient_Watch(t *testing.T) {
	c, _, nm := newTestClient(t, testToken)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan notification.Type, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(n *notification.Notification) { got <- n.Type })
	}()

	select {
	case typ := <-got:
		assert.Equal(t, notification.TypeInitialState, typ)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial state")
	}

	require.Eventually(t, func() bool { return nm.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	nm.Broadcast(&notification.Notification{Type: notification.TypeNowPlaying})
	select {
	case typ := <-got:
		assert.Equal(t, notification.TypeNowPlaying, typ)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
