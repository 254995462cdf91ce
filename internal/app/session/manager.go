// Package session provides the session manager: the command-layer contract over the
// sequencer, resolver, admission filters and requester registry.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/filter"
	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/queue"
	"github.com/osa030/radiobox/internal/app/resolver"
	"github.com/osa030/radiobox/internal/app/session/registry"
	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/playlist"
	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/config"
	"github.com/osa030/radiobox/internal/infra/history"
)

// Reject codes produced by the manager itself. Filter codes pass through unchanged.
const (
	CodeTrackNotFound = "track_not_found"
	CodeEmptyPlaylist = "empty_playlist"
)

var ErrEmptyRequest = errors.New("empty request")

// TrackResolver finds tracks. Implemented by resolver.Resolver.
type TrackResolver interface {
	Search(ctx context.Context, query string, limit int) []track.Track
	ResolveByID(ctx context.Context, id string) (track.Track, error)
	Durations(ctx context.Context, ids []string) map[string]time.Duration
}

// PlaylistImporter expands a provider playlist.
type PlaylistImporter interface {
	Import(ctx context.Context, playlistID string, limit int) (*playlist.Playlist, error)
}

// LinkRewriter turns foreign music links into search queries.
type LinkRewriter interface {
	IsTrackLink(s string) bool
	IsPlaylistLink(s string) bool
	TrackQuery(ctx context.Context, link string) (string, error)
	PlaylistQueries(ctx context.Context, link string, limit int) ([]string, error)
}

// HistoryStore records plays.
type HistoryStore interface {
	Record(ctx context.Context, qt track.QueuedTrack, playedAt time.Time) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Deps are the collaborators the manager wires together. Streams and Transport are
// required; the rest may be nil.
type Deps struct {
	Resolver  TrackResolver
	Streams   playback.StreamResolver
	Transport playback.Transport
	Finder    playback.RelatedFinder
	Snapshot  queue.Snapshotter
	Importer  PlaylistImporter
	Rewriter  LinkRewriter
	History   HistoryStore
}

// Requester identifies the chat user behind a command.
type Requester struct {
	UserID      string
	DisplayName string
}

// RequestResult is the outcome of a Request.
type RequestResult struct {
	Accepted bool
	Code     string             // Reject code when not accepted
	Track    *track.QueuedTrack // Admitted track (single-track requests)
	Position int                // 1-based queue position of Track
	Started  bool               // Playback was idle and has been started
	Playlist *PlaylistResult    // Set for playlist requests
}

// PlaylistResult summarizes a playlist request.
type PlaylistResult struct {
	Title    string
	Added    int
	Rejected int
}

// Status is a snapshot of the whole session.
type Status struct {
	playback.Status
	ListenerCount int
}

// Manager manages the playback session.
type Manager struct {
	config *config.Config

	sequencer    *playback.Sequencer
	resolver     TrackResolver
	importer     PlaylistImporter
	rewriter     LinkRewriter
	history      HistoryStore
	filterChain  *filter.Chain
	durationCap  filter.Filter
	listenerReg  *registry.ListenerRegistry
	notification *notification.Manager

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager and starts its event loop.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Streams == nil || deps.Transport == nil {
		return nil, errors.New("stream resolver and transport are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		resolver:     deps.Resolver,
		importer:     deps.Importer,
		rewriter:     deps.Rewriter,
		history:      deps.History,
		filterChain:  filter.NewChain(),
		listenerReg:  registry.NewListenerRegistry(cfg.Admin.DJUserIDs),
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	store := queue.NewStore(deps.Snapshot)
	m.sequencer = playback.NewSequencer(playback.Config{
		ResolveTimeout:         cfg.Playback.ResolveTimeout,
		MaxConsecutiveFailures: cfg.Playback.MaxConsecutiveFailures,
		RadioEnabled:           cfg.Radio.Enabled,
		RadioRelatedCount:      cfg.Radio.RelatedCount,
	}, store, deps.Streams, deps.Transport, deps.Finder, m.filterChain)

	if err := m.setupFilters(); err != nil {
		m.sequencer.Close()
		cancel()
		return nil, err
	}
	m.pruneRestored(store)

	go m.playbackLoop()
	return m, nil
}

// pruneRestored drops restored tracks that break the current duration limit.
// A snapshot written under a higher limit must not bring them back.
func (m *Manager) pruneRestored(store *queue.Store) {
	dropped := store.Prune(func(qt track.QueuedTrack) bool {
		return m.durationCap.Check(m.ctx, qt.Track, nil).Accepted
	})
	for _, qt := range dropped {
		zlog.Warn().Msgf("dropping restored track over duration limit: track=%s duration=%s",
			qt.Track.ID, track.FormatDuration(qt.Track.Duration))
	}
}

// setupFilters initializes the filter chain. Duration and queue limits are always on
// and default to the playback settings.
func (m *Manager) setupFilters() error {
	cfg := m.config

	duration := filter.NewDurationLimitFilter()
	settings := cfg.FilterSettings("duration_limit_filter")
	if _, ok := settings["max_seconds"]; !ok {
		settings["max_seconds"] = cfg.Playback.MaxSongDuration
	}
	if err := duration.ValidateConfig(settings); err != nil {
		return errors.Wrap(err, "duration_limit_filter")
	}
	m.filterChain.Add(duration)
	m.durationCap = duration

	queueLimit := filter.NewQueueLimitFilter(func() int { return len(m.sequencer.Queue()) })
	settings = cfg.FilterSettings("queue_limit_filter")
	if _, ok := settings["max_size"]; !ok {
		settings["max_size"] = cfg.Playback.MaxQueueSize
	}
	if err := queueLimit.ValidateConfig(settings); err != nil {
		return errors.Wrap(err, "queue_limit_filter")
	}
	m.filterChain.Add(queueLimit)

	if cfg.IsFilterEnabled("user_pending_filter") {
		f := &filter.UserPendingFilter{}
		if err := f.ValidateConfig(cfg.FilterSettings("user_pending_filter")); err != nil {
			return errors.Wrap(err, "user_pending_filter")
		}
		m.filterChain.Add(f)
	}

	if cfg.IsFilterEnabled("duplicate_track_filter") {
		m.filterChain.Add(filter.NewDuplicateTrackFilter(m.sequencer))
	}

	zlog.Info().Msgf("filters enabled: %s", strings.Join(m.filterChain.Names(), ","))
	return nil
}

// Request resolves input and queues it for requester. input may be a video link or id,
// a playlist link, a Spotify track or playlist link, or keywords.
// Lookups that fail because every provider is down return an error; everything else is
// reported through the result code.
func (m *Manager) Request(ctx context.Context, req Requester, input string) (*RequestResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyRequest
	}
	session := m.listenerReg.Touch(req.UserID, req.DisplayName)

	if id, ok := resolver.ExtractPlaylistID(input); ok && m.importer != nil {
		return m.requestPlaylist(ctx, session, id)
	}

	if m.rewriter != nil {
		switch {
		case m.rewriter.IsPlaylistLink(input):
			return m.requestSpotifyPlaylist(ctx, session, input)
		case m.rewriter.IsTrackLink(input):
			q, err := m.rewriter.TrackQuery(ctx, input)
			if err != nil {
				zlog.Warn().Msgf("spotify link lookup failed: link=%s error=%v", input, err)
				return m.reject(session, input, CodeTrackNotFound), nil
			}
			input = q
		}
	}

	t, code, err := m.lookup(ctx, input)
	if err != nil {
		return nil, err
	}
	if code != "" {
		return m.reject(session, input, code), nil
	}
	return m.admit(ctx, session, t), nil
}

// lookup resolves a single track from a link, bare id or keywords.
func (m *Manager) lookup(ctx context.Context, input string) (track.Track, string, error) {
	if id, ok := resolver.ExtractVideoID(input); ok {
		return m.lookupID(ctx, id)
	}
	// an 11-character word may be a bare id or a keyword; try both
	var idErr error
	if !resolver.IsURL(input) && resolver.IsBareVideoID(input) {
		t, code, err := m.lookupID(ctx, input)
		if code == "" && err == nil {
			return t, "", nil
		}
		if err != nil {
			zlog.Debug().Msgf("bare id lookup failed, searching as keywords: input=%q error=%v", input, err)
		}
		idErr = err
	}

	results := m.resolver.Search(ctx, input, 1)
	if len(results) == 0 {
		if idErr != nil {
			return track.Track{}, "", idErr
		}
		return track.Track{}, CodeTrackNotFound, nil
	}
	return results[0], "", nil
}

func (m *Manager) lookupID(ctx context.Context, id string) (track.Track, string, error) {
	t, err := m.resolver.ResolveByID(ctx, id)
	switch {
	case err == nil:
		return t, "", nil
	case errors.Is(err, resolver.ErrNotFound):
		return track.Track{}, CodeTrackNotFound, nil
	default:
		return track.Track{}, "", err
	}
}

func (m *Manager) reject(l *listener.Session, input, code string) *RequestResult {
	zlog.Info().Msgf("track request: requester=%s input=%q result=false code=%s", l.DisplayName, input, code)
	return &RequestResult{Code: code}
}

func (m *Manager) admit(ctx context.Context, l *listener.Session, t track.Track) *RequestResult {
	result := m.filterChain.Execute(ctx, t, l, track.RequesterTypeUser)
	zlog.Info().Msgf("track request: requester=%s track=%s result=%t code=%s", l.DisplayName, t.ID, result.Accepted, result.Code)
	if !result.Accepted {
		return &RequestResult{Code: result.Code}
	}

	qt := track.QueuedTrack{
		Track: t,
		Requester: track.Requester{
			ID:   l.ID,
			Name: l.DisplayName,
			Type: track.RequesterTypeUser,
		},
		AddedAt: time.Now(),
	}
	position := m.sequencer.Enqueue(qt)
	if err := m.listenerReg.IncrementPending(l.ID); err != nil {
		zlog.Error().Msgf("failed to increment pending tracks: %v", err)
	}
	m.broadcastQueueChanged()

	return &RequestResult{
		Accepted: true,
		Track:    &qt,
		Position: position,
		Started:  m.startIfIdle(),
	}
}

func (m *Manager) requestPlaylist(ctx context.Context, l *listener.Session, id string) (*RequestResult, error) {
	pl, err := m.importer.Import(ctx, id, m.config.Playback.MaxQueueSize)
	if err != nil {
		return nil, errors.Wrapf(err, "import playlist %s", id)
	}
	m.fillDurations(ctx, pl)
	return m.enqueuePlaylist(ctx, l, pl.Title, pl.Tracks), nil
}

// fillDurations looks up durations the importer left unset so the duration
// limit sees them. Tracks the lookup misses keep an unknown duration.
func (m *Manager) fillDurations(ctx context.Context, pl *playlist.Playlist) {
	known := m.resolver.Durations(ctx, pl.TrackIDs())
	filled := 0
	for i := range pl.Tracks {
		if pl.Tracks[i].Duration > 0 {
			continue
		}
		if d, ok := known[pl.Tracks[i].ID]; ok && d > 0 {
			pl.Tracks[i].Duration = d
			filled++
		}
	}
	zlog.Debug().Msgf("playlist durations: playlist=%s tracks=%d filled=%d", pl.ID, len(pl.Tracks), filled)
}

func (m *Manager) requestSpotifyPlaylist(ctx context.Context, l *listener.Session, link string) (*RequestResult, error) {
	queries, err := m.rewriter.PlaylistQueries(ctx, link, m.config.Playback.MaxQueueSize)
	if err != nil {
		return nil, errors.Wrap(err, "read spotify playlist")
	}

	tracks := make([]track.Track, 0, len(queries))
	for _, q := range queries {
		if results := m.resolver.Search(ctx, q, 1); len(results) > 0 {
			tracks = append(tracks, results[0])
		}
	}
	return m.enqueuePlaylist(ctx, l, link, tracks), nil
}

// enqueuePlaylist admits tracks one by one so the queue limit sees each addition.
func (m *Manager) enqueuePlaylist(ctx context.Context, l *listener.Session, title string, tracks []track.Track) *RequestResult {
	pr := &PlaylistResult{Title: title}
	for _, t := range tracks {
		if res := m.filterChain.Execute(ctx, t, l, track.RequesterTypePlaylist); !res.Accepted {
			pr.Rejected++
			continue
		}
		m.sequencer.Enqueue(track.QueuedTrack{
			Track: t,
			Requester: track.Requester{
				ID:   l.ID,
				Name: l.DisplayName,
				Type: track.RequesterTypePlaylist,
			},
			AddedAt: time.Now(),
		})
		pr.Added++
	}
	zlog.Info().Msgf("playlist request: requester=%s playlist=%q added=%d rejected=%d", l.DisplayName, title, pr.Added, pr.Rejected)

	if pr.Added == 0 {
		return &RequestResult{Code: CodeEmptyPlaylist, Playlist: pr}
	}
	m.broadcastQueueChanged()
	return &RequestResult{Accepted: true, Playlist: pr, Started: m.startIfIdle()}
}

func (m *Manager) startIfIdle() bool {
	if m.sequencer.State() != playback.StateIdle {
		return false
	}
	if err := m.sequencer.Play(); err != nil {
		zlog.Debug().Msgf("play after enqueue: %v", err)
		return false
	}
	return true
}

// Play starts or resumes playback.
func (m *Manager) Play() error {
	return m.sequencer.Play()
}

// Pause pauses playback.
func (m *Manager) Pause() error {
	return m.sequencer.Pause()
}

// Resume resumes playback.
func (m *Manager) Resume() error {
	return m.sequencer.Resume()
}

// Skip skips the current track.
func (m *Manager) Skip() error {
	return m.sequencer.Skip()
}

// Stop stops playback and clears the queue.
func (m *Manager) Stop() error {
	removed, err := m.sequencer.Stop()
	if err != nil {
		return err
	}
	m.releasePending(removed...)
	return nil
}

// Remove removes the queued track at a 1-based position.
func (m *Manager) Remove(position int) (track.QueuedTrack, error) {
	qt, err := m.sequencer.Remove(position)
	if err != nil {
		return qt, err
	}
	m.releasePending(qt)
	m.broadcastQueueChanged()
	return qt, nil
}

// Move moves a queued track.
func (m *Manager) Move(from, to int) (track.QueuedTrack, error) {
	qt, err := m.sequencer.Move(from, to)
	if err != nil {
		return qt, err
	}
	m.broadcastQueueChanged()
	return qt, nil
}

// Shuffle shuffles the queue.
func (m *Manager) Shuffle() error {
	if err := m.sequencer.Shuffle(); err != nil {
		return err
	}
	m.broadcastQueueChanged()
	return nil
}

// Clear empties the queue, leaving the current track playing. It returns the number removed.
func (m *Manager) Clear() int {
	removed := m.sequencer.Clear()
	m.releasePending(removed...)
	m.broadcastQueueChanged()
	return len(removed)
}

// SetRadio toggles radio mode.
func (m *Manager) SetRadio(enabled bool) {
	m.sequencer.SetRadio(enabled, 0)
	zlog.Info().Msgf("radio mode changed: enabled=%t", enabled)
}

// Radio reports whether radio mode is on.
func (m *Manager) Radio() bool {
	on, _ := m.sequencer.Radio()
	return on
}

// NowPlaying returns the current track and state.
func (m *Manager) NowPlaying() (*track.QueuedTrack, playback.State) {
	return m.sequencer.Current(), m.sequencer.State()
}

// Queue returns the pending tracks.
func (m *Manager) Queue() []track.QueuedTrack {
	return m.sequencer.Queue()
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	return Status{
		Status:        m.sequencer.Status(),
		ListenerCount: m.listenerReg.Count(),
	}
}

// History returns recent plays, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if m.history == nil {
		return []history.Entry{}, nil
	}
	return m.history.Recent(ctx, limit)
}

// Listeners returns every known requester.
func (m *Manager) Listeners() []listener.Session {
	return m.listenerReg.All()
}

// Filters returns the active filter chain.
func (m *Manager) Filters() []filter.Filter {
	return m.filterChain.Filters()
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Done is closed when the event loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback and the event loop.
func (m *Manager) Close() {
	m.cancel()
	m.sequencer.Close()
	<-m.done
	m.notification.Close()
}

func (m *Manager) releasePending(qts ...track.QueuedTrack) {
	for _, qt := range qts {
		if qt.Requester.Type == track.RequesterTypeUser {
			m.listenerReg.DecrementPending(qt.Requester.ID)
		}
	}
}

// playbackLoop handles sequencer events until the sequencer closes.
func (m *Manager) playbackLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
			zlog.Info().Msg("restarting playback loop")
			go m.playbackLoop()
			return
		}
		close(m.done)
	}()

	for event := range m.sequencer.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("playback event: type=%s state=%s", event.Type, event.State)

	n := &notification.Notification{
		State:       event.State.String(),
		Track:       notification.NewTrackInfo(event.Track),
		QueueLength: len(m.sequencer.Queue()),
	}

	switch event.Type {
	case playback.EventTrackLoading:
		// the track has left the queue
		if event.Track != nil {
			m.releasePending(*event.Track)
		}
		n.Type = notification.TypeTrackLoading

	case playback.EventTrackStarted:
		n.Type = notification.TypeNowPlaying
		if event.Track != nil {
			m.recordHistory(*event.Track)
		}

	case playback.EventTrackEnded:
		n.Type = notification.TypeTrackEnded

	case playback.EventTrackSkipped:
		n.Type = notification.TypeTrackSkipped

	case playback.EventTrackFailed:
		n.Type = notification.TypeTrackFailed
		if event.Err != nil {
			n.Message = event.Err.Error()
		}

	case playback.EventStateChanged:
		n.Type = notification.TypeStateChanged

	case playback.EventRadioExtended:
		n.Type = notification.TypeRadioExtended
		n.Tracks = notification.NewTrackInfos(event.Tracks)

	case playback.EventQueueEmpty:
		n.Type = notification.TypeQueueEmpty

	case playback.EventPlaybackHalted:
		n.Type = notification.TypePlaybackHalted
		if event.Err != nil {
			n.Message = event.Err.Error()
		}

	default:
		return
	}

	m.notification.Broadcast(n)
}

func (m *Manager) recordHistory(qt track.QueuedTrack) {
	if m.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	if err := m.history.Record(ctx, qt, time.Now()); err != nil {
		zlog.Error().Msgf("failed to record history: track=%s error=%v", qt.Track.ID, err)
	}
}

func (m *Manager) broadcastQueueChanged() {
	m.notification.Broadcast(&notification.Notification{
		Type:        notification.TypeQueueChanged,
		State:       m.sequencer.State().String(),
		QueueLength: len(m.sequencer.Queue()),
	})
}
