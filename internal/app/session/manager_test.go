package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/resolver"
	"github.com/osa030/radiobox/internal/domain/playlist"
	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/config"
	"github.com/osa030/radiobox/internal/infra/history"
)

type fakeResolver struct {
	mu        sync.Mutex
	search    map[string][]track.Track
	byID      map[string]track.Track
	lookupErr error
	queries   []string
	durations map[string]time.Duration
}

func (f *fakeResolver) Search(_ context.Context, query string, limit int) []track.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	results := f.search[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (f *fakeResolver) ResolveByID(_ context.Context, id string) (track.Track, error) {
	if f.lookupErr != nil {
		return track.Track{}, f.lookupErr
	}
	t, ok := f.byID[id]
	if !ok {
		return track.Track{}, resolver.ErrNotFound
	}
	return t, nil
}

func (f *fakeResolver) Durations(_ context.Context, ids []string) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, id := range ids {
		if d, ok := f.durations[id]; ok {
			out[id] = d
		}
	}
	return out
}

type restoredQueue []track.QueuedTrack

func (r restoredQueue) Load() ([]track.QueuedTrack, error) { return r, nil }
func (restoredQueue) Save([]track.QueuedTrack) error { return nil }

type okStreams struct{}

func (okStreams) Resolve(_ context.Context, ref string) (string, error) {
	return "stream:" + ref, nil
}

// idleTransport accepts streams and never finishes them on its own.
type idleTransport struct {
	mu     sync.Mutex
	active func(error)
	paused bool
}

func (t *idleTransport) Play(_ string, onComplete func(error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = onComplete
	return nil
}

func (t *idleTransport) Stop() {
	t.mu.Lock()
	cb := t.active
	t.active = nil
	t.mu.Unlock()
	if cb != nil {
		go cb(nil)
	}
}

func (t *idleTransport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

func (t *idleTransport) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

func (t *idleTransport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil && !t.paused
}

func (t *idleTransport) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil && t.paused
}

type fakeImporter struct {
	playlist *playlist.Playlist
}

func (f *fakeImporter) Import(_ context.Context, id string, _ int) (*playlist.Playlist, error) {
	if f.playlist == nil || f.playlist.ID != id {
		return nil, errors.New("no such playlist")
	}
	return f.playlist, nil
}

type fakeRewriter struct{}

func (fakeRewriter) IsTrackLink(s string) bool    { return s == "spotify:track:abc" }
func (fakeRewriter) IsPlaylistLink(s string) bool { return s == "spotify:playlist:xyz" }

func (fakeRewriter) TrackQuery(context.Context, string) (string, error) {
	return "Rick Astley Never Gonna Give You Up", nil
}

func (fakeRewriter) PlaylistQueries(context.Context, string, int) ([]string, error) {
	return []string{"song one", "missing song", "song two"}, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (h *memHistory) Record(_ context.Context, qt track.QueuedTrack, playedAt time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]history.Entry{{VideoID: qt.Track.ID, Title: qt.Track.Title, PlayedAtUnix: playedAt.Unix()}}, h.entries...)
	return nil
}

func (h *memHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > limit {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

func (h *memHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func song(id string, d time.Duration) track.Track {
	return track.Track{ID: id, Title: "Song " + id, Artist: "Artist " + id, URL: track.WatchURL(id), Duration: d}
}

func testConfig() *config.Config {
	return &config.Config{
		Playback: config.PlaybackConfig{
			MaxSongDuration:        600,
			MaxQueueSize:           2,
			MaxConsecutiveFailures: 5,
		},
		Radio: config.RadioConfig{RelatedCount: 5},
		Admin: config.AdminConfig{DJUserIDs: []string{"dj"}},
		Filters: map[string]config.FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"user_pending_filter":    {Enabled: true, Settings: map[string]any{"max_pending": 2}},
		},
	}
}

type fixture struct {
	m        *Manager
	resolver *fakeResolver
	history  *memHistory
}

func newFixture(t *testing.T, cfg *config.Config, deps Deps) *fixture {
	t.Helper()
	f := &fixture{
		resolver: &fakeResolver{
			search: map[string][]track.Track{
				"hello":                               {song("helloSong01", 3*time.Minute)},
				"long one":                            {song("longSong001", 11*time.Minute)},
				"Rick Astley Never Gonna Give You Up": {song("dQw4w9WgXcQ", 213*time.Second)},
				"song one":                            {song("songOne0001", time.Minute)},
				"song two":                            {song("songTwo0001", time.Minute)},
				"a":                                   {song("aaaaaaaaaaa", time.Minute)},
				"b":                                   {song("bbbbbbbbbbb", time.Minute)},
				"c":                                   {song("ccccccccccc", time.Minute)},
				"d":                                   {song("ddddddddddd", time.Minute)},
			},
			byID: map[string]track.Track{
				"dQw4w9WgXcQ": song("dQw4w9WgXcQ", 213*time.Second),
			},
		},
		history: &memHistory{},
	}
	deps.Resolver = f.resolver
	deps.Streams = okStreams{}
	deps.Transport = &idleTransport{}
	deps.History = f.history

	m, err := NewManager(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	f.m = m
	return f
}

var alice = Requester{UserID: "u1", DisplayName: "alice"}

func pendingOf(m *Manager, userID string) int {
	for _, l := range m.Listeners() {
		if l.ID == userID {
			return l.PendingTracks
		}
	}
	return -1
}

func TestManager_RequestKeywordStartsPlayback(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})

	res, err := f.m.Request(context.Background(), alice, "hello")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "helloSong01", res.Track.Track.ID)
	assert.Equal(t, "alice", res.Track.RequestedBy())
	assert.Equal(t, track.RequesterTypeUser, res.Track.Requester.Type)
	assert.Equal(t, 1, res.Position)
	assert.True(t, res.Started)

	require.Eventually(t, func() bool {
		cur, state := f.m.NowPlaying()
		return state == playback.StatePlaying && cur != nil && cur.Track.ID == "helloSong01"
	}, 2*time.Second, 10*time.Millisecond)

	// pending released once the track left the queue, history recorded on start
	assert.Eventually(t, func() bool { return pendingOf(f.m, "u1") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return f.history.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	entries, err := f.m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "helloSong01", entries[0].VideoID)
}

func TestManager_RequestRejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{name: "no results", input: "nothing matches", code: CodeTrackNotFound},
		{name: "unknown link", input: "https://youtu.be/zzzzzzzzzzz", code: CodeTrackNotFound},
		{name: "too long", input: "long one", code: "duration_limit_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), Deps{})
			res, err := f.m.Request(context.Background(), alice, tt.input)
			require.NoError(t, err)
			assert.False(t, res.Accepted)
			assert.Equal(t, tt.code, res.Code)
			assert.Empty(t, f.m.Queue())
		})
	}
}

func TestManager_RequestEmpty(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})
	_, err := f.m.Request(context.Background(), alice, "   ")
	assert.True(t, errors.Is(err, ErrEmptyRequest))
}

func TestManager_RequestLinkUsesLookup(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})

	res, err := f.m.Request(context.Background(), alice, "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "dQw4w9WgXcQ", res.Track.Track.ID)
	assert.Empty(t, f.resolver.queries)
}

func TestManager_RequestProviderUnavailable(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})
	f.resolver.lookupErr = errors.Mark(errors.New("quota exceeded"), resolver.ErrProviderUnavailable)

	_, err := f.m.Request(context.Background(), alice, "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolver.ErrProviderUnavailable))
}

func TestManager_RequestBareWordFallsBackToSearch(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})
	f.resolver.lookupErr = errors.Mark(errors.New("quota exceeded"), resolver.ErrProviderUnavailable)
	f.resolver.search["beautifully"] = []track.Track{song("beautiful01", 3*time.Minute)}
	ctx := context.Background()

	res, err := f.m.Request(ctx, alice, "beautifully")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "beautiful01", res.Track.Track.ID)
	assert.Contains(t, f.resolver.queries, "beautifully")

	// nothing found by either path keeps the lookup error
	_, err = f.m.Request(ctx, alice, "christmases")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolver.ErrProviderUnavailable))
}

func TestManager_RestoredQueueHonoursDurationLimit(t *testing.T) {
	restored := restoredQueue{
		{Track: song("short000001", 3*time.Minute), Requester: track.Requester{Name: "alice"}},
		{Track: song("long0000001", 45*time.Minute), Requester: track.Requester{Name: "alice"}},
		{Track: song("unknown0001", 0), Requester: track.RadioRequester()},
	}
	f := newFixture(t, testConfig(), Deps{Snapshot: restored})

	queued := f.m.Queue()
	require.Len(t, queued, 2)
	assert.Equal(t, "short000001", queued[0].Track.ID)
	assert.Equal(t, "unknown0001", queued[1].Track.ID)
}

func TestManager_QueueAndDuplicateLimits(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})
	ctx := context.Background()
	bob := Requester{UserID: "u2", DisplayName: "bob"}
	dj := Requester{UserID: "dj", DisplayName: "dj"}

	// first request starts playing and leaves the queue empty
	res, err := f.m.Request(ctx, alice, "a")
	require.NoError(t, err)
	require.True(t, res.Accepted)

	res, err = f.m.Request(ctx, bob, "a")
	require.NoError(t, err)
	assert.Equal(t, "duplicate_track", res.Code)

	res, err = f.m.Request(ctx, alice, "b")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.False(t, res.Started)

	res, err = f.m.Request(ctx, dj, "c")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, 2, res.Position)

	res, err = f.m.Request(ctx, bob, "d")
	require.NoError(t, err)
	assert.Equal(t, "queue_full", res.Code)
}

func TestManager_UserPendingLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.MaxQueueSize = 10
	cfg.Filters["user_pending_filter"] = config.FilterConfig{Enabled: true, Settings: map[string]any{"max_pending": 1}}
	f := newFixture(t, cfg, Deps{})
	ctx := context.Background()

	_, err := f.m.Request(ctx, alice, "a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pendingOf(f.m, "u1") == 0 }, 2*time.Second, 10*time.Millisecond)

	res, err := f.m.Request(ctx, alice, "b")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, 1, pendingOf(f.m, "u1"))

	res, err = f.m.Request(ctx, alice, "c")
	require.NoError(t, err)
	assert.Equal(t, "user_pending", res.Code)

	// removing the waiting track frees the slot
	_, err = f.m.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, 0, pendingOf(f.m, "u1"))

	res, err = f.m.Request(ctx, alice, "c")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestManager_SpotifyLinks(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.MaxQueueSize = 10
	f := newFixture(t, cfg, Deps{Rewriter: fakeRewriter{}})
	ctx := context.Background()

	res, err := f.m.Request(ctx, alice, "spotify:track:abc")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "dQw4w9WgXcQ", res.Track.Track.ID)

	res, err = f.m.Request(ctx, alice, "spotify:playlist:xyz")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Playlist)
	assert.Equal(t, 2, res.Playlist.Added)
}

func TestManager_PlaylistImport(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.MaxQueueSize = 10
	importer := &fakeImporter{playlist: &playlist.Playlist{
		ID:    "PL123",
		Title: "Mix tape",
		Tracks: []track.Track{
			song("p1aaaaaaaaa", time.Minute),
			song("p2aaaaaaaaa", 20*time.Minute),
			song("p3aaaaaaaaa", time.Minute),
		},
	}}
	f := newFixture(t, cfg, Deps{Importer: importer})

	res, err := f.m.Request(context.Background(), alice, "https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "Mix tape", res.Playlist.Title)
	assert.Equal(t, 2, res.Playlist.Added)
	assert.Equal(t, 1, res.Playlist.Rejected)
	assert.True(t, res.Started)

	// the first track is playing, the second waits and is tagged as a playlist add
	queued := f.m.Queue()
	require.Len(t, queued, 1)
	assert.Equal(t, "p3aaaaaaaaa", queued[0].Track.ID)
	assert.Equal(t, track.RequesterTypePlaylist, queued[0].Requester.Type)

	_, err = f.m.Request(context.Background(), alice, "https://www.youtube.com/playlist?list=PLnope")
	assert.Error(t, err)
}

func TestManager_PlaylistImportFillsDurations(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.MaxQueueSize = 10
	// imported items carry no duration
	importer := &fakeImporter{playlist: &playlist.Playlist{
		ID:    "PL123",
		Title: "Long sets",
		Tracks: []track.Track{
			song("p1aaaaaaaaa", 0),
			song("p2aaaaaaaaa", 0),
			song("p3aaaaaaaaa", 0),
		},
	}}
	f := newFixture(t, cfg, Deps{Importer: importer})
	f.resolver.durations = map[string]time.Duration{
		"p1aaaaaaaaa": 4 * time.Minute,
		"p2aaaaaaaaa": 3 * time.Hour,
	}

	res, err := f.m.Request(context.Background(), alice, "https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, 2, res.Playlist.Added)
	assert.Equal(t, 1, res.Playlist.Rejected)

	// p3 has no known duration and is admitted as unknown
	queued := f.m.Queue()
	require.Len(t, queued, 1)
	assert.Equal(t, "p3aaaaaaaaa", queued[0].Track.ID)
	assert.Zero(t, queued[0].Track.Duration)
	current, _ := f.m.NowPlaying()
	require.NotNil(t, current)
	assert.Equal(t, 4*time.Minute, current.Track.Duration)
}

func TestManager_StopAndControls(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.MaxQueueSize = 10
	delete(cfg.Filters, "user_pending_filter")
	f := newFixture(t, cfg, Deps{})
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := f.m.Request(ctx, alice, q)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		_, state := f.m.NowPlaying()
		return state == playback.StatePlaying
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.m.Pause())
	assert.True(t, errors.Is(f.m.Pause(), playback.ErrNotPlaying))
	require.NoError(t, f.m.Resume())

	_, err := f.m.Move(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "ccccccccccc", f.m.Queue()[0].Track.ID)

	f.m.SetRadio(true)
	assert.True(t, f.m.Radio())
	status := f.m.Status()
	assert.True(t, status.Radio)
	assert.Equal(t, 2, status.QueueLength)
	assert.Equal(t, 1, status.ListenerCount)

	require.NoError(t, f.m.Stop())
	_, state := f.m.NowPlaying()
	assert.Equal(t, playback.StateIdle, state)
	assert.Empty(t, f.m.Queue())
	assert.Eventually(t, func() bool { return pendingOf(f.m, "u1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_Notifications(t *testing.T) {
	f := newFixture(t, testConfig(), Deps{})

	var mu sync.Mutex
	seen := map[notification.Type]bool{}
	f.m.GetNotificationManager().Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		seen[n.Type] = true
		return nil
	}))

	_, err := f.m.Request(context.Background(), alice, "hello")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[notification.TypeQueueChanged] && seen[notification.TypeTrackLoading] && seen[notification.TypeNowPlaying]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewManager_RequiresTransport(t *testing.T) {
	_, err := NewManager(testConfig(), Deps{Streams: okStreams{}})
	assert.Error(t, err)
}

func TestNewManager_InvalidFilterSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Filters["duration_limit_filter"] = config.FilterConfig{Settings: map[string]any{"max_seconds": -5}}
	_, err := NewManager(cfg, Deps{Streams: okStreams{}, Transport: &idleTransport{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration_limit_filter")
}
