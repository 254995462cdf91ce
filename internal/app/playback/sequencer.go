package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/filter"
	"github.com/osa030/radiobox/internal/app/queue"
	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// Errors
var (
	ErrNotPlaying             = errors.New("not playing")
	ErrNotPaused              = errors.New("not paused")
	ErrNothingToPlay          = errors.New("nothing to play")
	ErrStreamResolutionFailed = errors.New("stream resolution failed")
	ErrClosed                 = errors.New("sequencer closed")
)

// StreamResolver turns a playable reference into a short-lived stream URL.
type StreamResolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// Transport plays resolved streams. onComplete must be called exactly once per successful
// Play, from any goroutine, including after Stop.
type Transport interface {
	Play(stream string, onComplete func(error)) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
}

// RelatedFinder produces radio continuations. It never fails; failure is an empty list.
type RelatedFinder interface {
	Related(ctx context.Context, seed track.Track, maxResults int) []track.Track
}

// Admitter screens radio continuations before they are queued. *filter.Chain satisfies it.
type Admitter interface {
	Execute(ctx context.Context, t track.Track, l *listener.Session, requesterType track.RequesterType) filter.Result
}

// Config holds sequencer configuration.
type Config struct {
	ResolveTimeout         time.Duration // Deadline for one stream resolution (0 = none)
	MaxConsecutiveFailures int           // Halt after this many failed starts in a row (0 = no cap)
	RadioEnabled           bool          // Initial radio mode
	RadioRelatedCount      int           // Continuations requested per radio extension
	EventBuffer            int           // Events channel capacity
}

// Status is a point-in-time view of the sequencer.
type Status struct {
	State         State
	Current       *track.QueuedTrack
	QueueLength   int
	QueueDuration time.Duration
	Radio         bool
	RadioCount    int
}

// Sequencer is the playback state machine. Every state transition runs on a single loop
// goroutine; commands and transport callbacks are posted to it as closures.
// Readers take mu; state and current are written only by the loop.
type Sequencer struct {
	config    Config
	queue     *queue.Store
	streams   StreamResolver
	transport Transport
	finder    RelatedFinder
	admit     Admitter

	inbox  chan func()
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	state      State
	current    *track.QueuedTrack
	radio      bool
	radioCount int

	// Owned by the loop goroutine
	gen      uint64
	failures int
	skipped  bool
}

// NewSequencer creates a sequencer and starts its loop. finder and admit may be nil.
func NewSequencer(config Config, q *queue.Store, streams StreamResolver, transport Transport, finder RelatedFinder, admit Admitter) *Sequencer {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.RadioRelatedCount <= 0 {
		config.RadioRelatedCount = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		config:     config,
		queue:      q,
		streams:    streams,
		transport:  transport,
		finder:     finder,
		admit:      admit,
		inbox:      make(chan func(), 32),
		events:     make(chan Event, config.EventBuffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      StateIdle,
		radio:      config.RadioEnabled,
		radioCount: config.RadioRelatedCount,
	}
	go s.loop()
	return s
}

// Events returns the event channel. It is closed by Close.
func (s *Sequencer) Events() <-chan Event {
	return s.events
}

func (s *Sequencer) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.inbox:
			s.run(fn)
		}
	}
}

func (s *Sequencer) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("sequencer: recovered from panic: %v", r)
		}
	}()
	fn()
}

// post hands fn to the loop without waiting for it to run.
func (s *Sequencer) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.ctx.Done():
	}
}

// do runs fn on the loop and waits for it.
func (s *Sequencer) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case s.inbox <- func() { result <- fn() }:
	case <-s.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// Enqueue appends tracks to the queue and returns the new queue length.
// It does not start playback; call Play for that.
func (s *Sequencer) Enqueue(qts ...track.QueuedTrack) int {
	return s.queue.Append(qts...)
}

// Play starts playback from Idle, resumes from Paused and is a no-op otherwise.
// From Idle with an empty queue it returns ErrNothingToPlay.
func (s *Sequencer) Play() error {
	return s.do(func() error {
		switch s.State() {
		case StatePaused:
			return s.resumeLocked()
		case StatePlaying, StateLoading:
			return nil
		}
		s.failures = 0
		return s.advance(true)
	})
}

// Pause suspends playback. Valid only while Playing.
func (s *Sequencer) Pause() error {
	return s.do(func() error {
		if s.State() != StatePlaying {
			return ErrNotPlaying
		}
		s.transport.Pause()
		s.setState(StatePaused, s.Current())
		s.emit(Event{Type: EventStateChanged, Track: s.Current(), State: StatePaused})
		return nil
	})
}

// Resume continues paused playback. Valid only while Paused.
func (s *Sequencer) Resume() error {
	return s.do(s.resumeLocked)
}

func (s *Sequencer) resumeLocked() error {
	if s.State() != StatePaused {
		return ErrNotPaused
	}
	s.transport.Resume()
	s.setState(StatePlaying, s.Current())
	s.emit(Event{Type: EventStateChanged, Track: s.Current(), State: StatePlaying})
	return nil
}

// Skip stops the current track. The transport's completion callback then advances
// to the next track. Valid from Playing or Paused.
func (s *Sequencer) Skip() error {
	return s.do(func() error {
		if !s.State().Active() {
			return ErrNotPlaying
		}
		s.skipped = true
		s.transport.Stop()
		return nil
	})
}

// Stop halts playback from any state, clears the queue and returns the removed tracks.
func (s *Sequencer) Stop() ([]track.QueuedTrack, error) {
	var removed []track.QueuedTrack
	err := s.do(func() error {
		// invalidate in-flight resolutions and completions
		s.gen++
		if s.transport.IsPlaying() || s.transport.IsPaused() {
			s.transport.Stop()
		}
		removed = s.queue.Clear()
		prev := s.Current()
		s.setState(StateIdle, nil)
		s.emit(Event{Type: EventStateChanged, Track: prev, State: StateIdle, Tracks: removed})
		zlog.Info().Msgf("sequencer stopped: cleared=%d", len(removed))
		return nil
	})
	return removed, err
}

// SetRadio toggles radio mode. count <= 0 keeps the current continuation count.
func (s *Sequencer) SetRadio(enabled bool, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radio = enabled
	if count > 0 {
		s.radioCount = count
	}
}

// Radio returns whether radio mode is on and how many continuations it requests.
func (s *Sequencer) Radio() (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radio, s.radioCount
}

// Remove removes the queued track at a 1-based position.
func (s *Sequencer) Remove(position int) (track.QueuedTrack, error) {
	return s.queue.RemoveAt(position)
}

// Move moves a queued track between 1-based positions.
func (s *Sequencer) Move(from, to int) (track.QueuedTrack, error) {
	return s.queue.Move(from, to)
}

// Shuffle shuffles the queue.
func (s *Sequencer) Shuffle() error {
	return s.queue.Shuffle()
}

// Clear empties the queue without touching the current track.
func (s *Sequencer) Clear() []track.QueuedTrack {
	return s.queue.Clear()
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns a copy of the current track, or nil.
func (s *Sequencer) Current() *track.QueuedTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	qt := *s.current
	return &qt
}

// Queue returns a copy of the pending tracks.
func (s *Sequencer) Queue() []track.QueuedTrack {
	return s.queue.List()
}

// GetAllTracks returns the current track followed by the queue.
// Implements filter.QueueManager.
func (s *Sequencer) GetAllTracks() []track.QueuedTrack {
	pending := s.queue.List()
	result := make([]track.QueuedTrack, 0, len(pending)+1)
	if cur := s.Current(); cur != nil {
		result = append(result, *cur)
	}
	return append(result, pending...)
}

// Status returns a snapshot of the sequencer.
func (s *Sequencer) Status() Status {
	radio, count := s.Radio()
	return Status{
		State:         s.State(),
		Current:       s.Current(),
		QueueLength:   s.queue.Len(),
		QueueDuration: s.queue.TotalDuration(),
		Radio:         radio,
		RadioCount:    count,
	}
}

// Close stops the loop and the transport, then closes the events channel.
func (s *Sequencer) Close() {
	s.cancel()
	<-s.done
	if s.transport.IsPlaying() || s.transport.IsPaused() {
		s.transport.Stop()
	}
	close(s.events)
}

// advance pops the next track and starts loading it. On an empty queue it extends
// via radio when allowed, otherwise it goes Idle. Runs on the loop.
func (s *Sequencer) advance(allowRadio bool) error {
	qt, err := s.queue.PopFront()
	if err == nil {
		s.load(qt)
		return nil
	}
	if !errors.Is(err, queue.ErrEmptyQueue) {
		return err
	}

	radio, count := s.Radio()
	if seed := s.Current(); allowRadio && radio && s.finder != nil && seed != nil {
		s.extend(*seed, count)
		return nil
	}

	s.goIdle()
	return ErrNothingToPlay
}

func (s *Sequencer) goIdle() {
	prev := s.Current()
	s.setState(StateIdle, nil)
	s.emit(Event{Type: EventQueueEmpty, Track: prev, State: StateIdle})
	zlog.Info().Msg("sequencer idle: queue empty")
}

func (s *Sequencer) load(qt track.QueuedTrack) {
	s.gen++
	gen := s.gen
	s.skipped = false
	s.setState(StateLoading, &qt)
	s.emit(Event{Type: EventTrackLoading, Track: &qt, State: StateLoading})
	zlog.Debug().Msgf("sequencer loading: track=%s gen=%d", qt.Track.ID, gen)

	go func() {
		stream, err := s.resolve(qt)
		s.post(func() { s.onResolved(gen, qt, stream, err) })
	}()
}

func (s *Sequencer) resolve(qt track.QueuedTrack) (string, error) {
	ctx := s.ctx
	if s.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ResolveTimeout)
		defer cancel()
	}

	ref := qt.Track.URL
	if ref == "" {
		ref = track.WatchURL(qt.Track.ID)
	}
	stream, err := s.streams.Resolve(ctx, ref)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "resolve %s", qt.Track.ID), ErrStreamResolutionFailed)
	}
	if stream == "" {
		return "", errors.Wrapf(ErrStreamResolutionFailed, "no stream for %s", qt.Track.ID)
	}
	return stream, nil
}

func (s *Sequencer) onResolved(gen uint64, qt track.QueuedTrack, stream string, err error) {
	if gen != s.gen || s.State() != StateLoading {
		zlog.Debug().Msgf("sequencer: discarding stale resolution: track=%s gen=%d", qt.Track.ID, gen)
		return
	}

	if err == nil {
		err = s.transport.Play(stream, func(playErr error) {
			s.post(func() { s.onFinished(gen, playErr) })
		})
		if err != nil {
			err = errors.Mark(errors.Wrap(err, "transport play"), ErrStreamResolutionFailed)
		}
	}
	if err != nil {
		s.fail(qt, err)
		return
	}

	s.failures = 0
	s.setState(StatePlaying, &qt)
	s.emit(Event{Type: EventTrackStarted, Track: &qt, State: StatePlaying})
	zlog.Info().Msgf("now playing: track=%s title=%q requester=%s", qt.Track.ID, qt.Track.Title, qt.RequestedBy())
}

func (s *Sequencer) fail(qt track.QueuedTrack, err error) {
	s.failures++
	zlog.Warn().Msgf("track failed to start: track=%s failures=%d error=%v", qt.Track.ID, s.failures, err)
	s.emit(Event{Type: EventTrackFailed, Track: &qt, State: StateLoading, Err: err})

	if limit := s.config.MaxConsecutiveFailures; limit > 0 && s.failures >= limit {
		zlog.Error().Msgf("playback halted: consecutive_failures=%d", s.failures)
		s.failures = 0
		s.setState(StateIdle, nil)
		s.emit(Event{
			Type:  EventPlaybackHalted,
			Track: &qt,
			State: StateIdle,
			Err:   errors.Newf("%d consecutive tracks failed to start", limit),
		})
		return
	}
	_ = s.advance(true)
}

func (s *Sequencer) onFinished(gen uint64, err error) {
	if gen != s.gen || !s.State().Active() {
		return
	}

	cur := s.Current()
	eventType := EventTrackEnded
	if s.skipped {
		eventType = EventTrackSkipped
	}
	if err != nil && !s.skipped {
		zlog.Warn().Msgf("transport finished with error: track=%s error=%v", cur.Track.ID, err)
	}
	s.skipped = false
	s.emit(Event{Type: eventType, Track: cur, State: s.State()})
	_ = s.advance(true)
}

// extend asks the finder for continuations off the loop and re-enters advance with them.
func (s *Sequencer) extend(seed track.QueuedTrack, count int) {
	s.gen++
	gen := s.gen
	s.setState(StateLoading, &seed)
	zlog.Info().Msgf("radio: queue empty, finding related: seed=%s count=%d", seed.Track.ID, count)

	go func() {
		found := s.finder.Related(s.ctx, seed.Track, count)
		admitted := make([]track.QueuedTrack, 0, len(found))
		for _, t := range found {
			if s.admit != nil {
				if res := s.admit.Execute(s.ctx, t, nil, track.RequesterTypeRadio); !res.Accepted {
					zlog.Debug().Msgf("radio: continuation rejected: track=%s code=%s", t.ID, res.Code)
					continue
				}
			}
			admitted = append(admitted, track.QueuedTrack{Track: t, Requester: track.RadioRequester()})
		}
		s.post(func() { s.onExtended(gen, admitted) })
	}()
}

func (s *Sequencer) onExtended(gen uint64, added []track.QueuedTrack) {
	if gen != s.gen || s.State() != StateLoading {
		return
	}
	if len(added) == 0 {
		// Tracks enqueued during the search still play.
		zlog.Info().Msg("radio: no continuations found")
		_ = s.advance(false)
		return
	}

	s.queue.Append(added...)
	s.emit(Event{Type: EventRadioExtended, Track: s.Current(), State: StateLoading, Tracks: added})
	zlog.Info().Msgf("radio: added continuations: count=%d", len(added))
	_ = s.advance(false)
}

func (s *Sequencer) setState(state State, current *track.QueuedTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.current = current
}

// emit sends without blocking; a full channel drops the event.
func (s *Sequencer) emit(e Event) {
	select {
	case s.events <- e:
	default:
		zlog.Warn().Msgf("sequencer: event channel full, dropping event: type=%s", e.Type)
	}
}
