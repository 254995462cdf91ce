package discord

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/voice"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/osa030/radiobox/internal/infra/logger"
)

// Transport errors
var (
	ErrNotConnected = errors.New("not connected to a voice channel")
	ErrNoAudio      = errors.New("stream produced no audio")
)

// opusSilence is a single silent Opus frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameBuffer = 50

// FrameSink accepts an Opus frame provider. voice.Conn satisfies it.
type FrameSink interface {
	SetOpusFrameProvider(provider voice.OpusFrameProvider)
}

// frameSource yields Opus frames for one stream.
type frameSource interface {
	Next() ([]byte, error)
	Close() error
}

type sourceFunc func(ctx context.Context, streamURL string) (frameSource, error)

// TransportConfig represents voice transport configuration.
type TransportConfig struct {
	FFmpeg string
	Volume float64
}

// Transport plays one stream at a time into the voice connection.
type Transport struct {
	open sourceFunc

	mu      sync.Mutex
	sink    FrameSink
	current *stream
}

// NewTransport creates a Transport that decodes streams with ffmpeg.
func NewTransport(cfg TransportConfig) *Transport {
	return &Transport{
		open: func(ctx context.Context, streamURL string) (frameSource, error) {
			return startFFmpeg(ctx, cfg, streamURL)
		},
	}
}

// SetSink attaches a voice connection. A nil sink detaches and stops playback.
func (t *Transport) SetSink(sink FrameSink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
	if sink == nil {
		t.Stop()
	}
}

// Play starts streaming. onComplete is called exactly once, when the stream
// ends, fails or is stopped.
func (t *Transport) Play(streamURL string, onComplete func(error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sink == nil {
		return ErrNotConnected
	}
	if t.current != nil {
		t.current.finish(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	src, err := t.open(ctx, streamURL)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to open stream")
	}

	s := &stream{
		transport:  t,
		source:     src,
		cancel:     cancel,
		frames:     make(chan []byte, frameBuffer),
		onComplete: onComplete,
	}
	t.current = s
	go s.read()
	t.sink.SetOpusFrameProvider(s)
	return nil
}

// Stop ends the current stream, if any.
func (t *Transport) Stop() {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()
	if s != nil {
		s.finish(nil)
	}
}

// Pause makes the current stream serve silence.
func (t *Transport) Pause() {
	if s := t.active(); s != nil {
		s.paused.Store(true)
	}
}

// Resume resumes the current stream.
func (t *Transport) Resume() {
	if s := t.active(); s != nil {
		s.paused.Store(false)
	}
}

// IsPlaying reports whether a stream is active and not paused.
func (t *Transport) IsPlaying() bool {
	s := t.active()
	return s != nil && !s.paused.Load()
}

// IsPaused reports whether the active stream is paused.
func (t *Transport) IsPaused() bool {
	s := t.active()
	return s != nil && s.paused.Load()
}

func (t *Transport) active() *stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// release detaches s if it is still current.
func (t *Transport) release(s *stream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != s {
		return
	}
	t.current = nil
	if t.sink != nil {
		t.sink.SetOpusFrameProvider(nil)
	}
}

// stream is one playing source. It implements voice.OpusFrameProvider.
type stream struct {
	transport *Transport
	source    frameSource
	cancel    context.CancelFunc
	frames    chan []byte
	readErr   error
	sent      atomic.Int64
	paused    atomic.Bool

	once       sync.Once
	onComplete func(error)
}

// read pumps frames from the source until it ends.
func (s *stream) read() {
	defer close(s.frames)
	for {
		frame, err := s.source.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.readErr = err
			}
			return
		}
		if len(frame) == 0 {
			continue
		}
		s.frames <- frame
	}
}

// ProvideOpusFrame is called by the voice sender every 20ms.
func (s *stream) ProvideOpusFrame() ([]byte, error) {
	if s.paused.Load() {
		return opusSilence, nil
	}
	select {
	case frame, ok := <-s.frames:
		if !ok {
			err := s.readErr
			if err == nil && s.sent.Load() == 0 {
				err = ErrNoAudio
			}
			s.finish(err)
			return nil, io.EOF
		}
		s.sent.Add(1)
		return frame, nil
	default:
		// Source is buffering
		return opusSilence, nil
	}
}

// Close is called by the voice sender when the provider is replaced.
func (s *stream) Close() {}

// finish tears the stream down and reports completion once. The callback runs
// on its own goroutine since finish can be reached from the voice sender.
func (s *stream) finish(err error) {
	s.once.Do(func() {
		s.cancel()
		go func() {
			if cerr := s.source.Close(); cerr != nil {
				logger.Component("voice").Debug().Msgf("stream source close: %v", cerr)
			}
			// Unblock the reader if it is parked on a full buffer
			for range s.frames {
			}
			s.transport.release(s)
			if s.onComplete != nil {
				s.onComplete(err)
			}
		}()
	})
}

// ffmpegArgs builds the decode pipeline: reconnecting input, audio only,
// 48kHz stereo Opus with one 20ms packet per Ogg page.
func ffmpegArgs(streamURL string, volume float64) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-af", fmt.Sprintf("volume=%.2f", volume),
		"-c:a", "libopus", "-b:a", "128k",
		"-ar", "48000", "-ac", "2",
		"-frame_duration", "20",
		"-page_duration", "20000",
		"-f", "ogg", "pipe:1",
	}
}

// ffmpegSource reads Opus packets out of ffmpeg's Ogg output.
type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	ogg    *oggreader.OggReader

	waitOnce sync.Once
	waitErr  error
}

func startFFmpeg(ctx context.Context, cfg TransportConfig, streamURL string) (*ffmpegSource, error) {
	bin := cfg.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, ffmpegArgs(streamURL, cfg.Volume)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ffmpeg pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}
	return &ffmpegSource{cmd: cmd, stdout: stdout}, nil
}

// Next returns the next Opus packet, skipping the OpusTags page.
func (f *ffmpegSource) Next() ([]byte, error) {
	if f.ogg == nil {
		ogg, _, err := oggreader.NewWith(f.stdout)
		if err != nil {
			return nil, f.exitError(err)
		}
		f.ogg = ogg
	}
	for {
		payload, _, err := f.ogg.ParseNextPage()
		if err != nil {
			return nil, f.exitError(err)
		}
		if len(payload) >= 8 && string(payload[:8]) == "OpusTags" {
			continue
		}
		return payload, nil
	}
}

// exitError maps reader errors to io.EOF on a clean ffmpeg exit.
func (f *ffmpegSource) exitError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if werr := f.wait(); werr != nil {
			return errors.Wrap(werr, "ffmpeg exited")
		}
		return io.EOF
	}
	return errors.Wrap(err, "failed to read ogg stream")
}

func (f *ffmpegSource) wait() error {
	f.waitOnce.Do(func() {
		f.waitErr = f.cmd.Wait()
	})
	return f.waitErr
}

func (f *ffmpegSource) Close() error {
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	_ = f.wait()
	return nil
}
