package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/queue"
	"github.com/osa030/radiobox/internal/app/session"
	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/config"
	"github.com/osa030/radiobox/internal/infra/history"
)

// ErrNotInVoice is returned when the command author is not in a voice channel.
var ErrNotInVoice = errors.New("user is not in a voice channel")

// Controller is the playback session as seen by chat commands.
type Controller interface {
	Request(ctx context.Context, req session.Requester, input string) (*session.RequestResult, error)
	Play() error
	Pause() error
	Resume() error
	Skip() error
	Stop() error
	Remove(position int) (track.QueuedTrack, error)
	Move(from, to int) (track.QueuedTrack, error)
	Shuffle() error
	Clear() int
	SetRadio(enabled bool)
	Radio() bool
	NowPlaying() (*track.QueuedTrack, playback.State)
	Queue() []track.QueuedTrack
	History(ctx context.Context, limit int) ([]history.Entry, error)
}

// VoiceControl joins and leaves voice channels.
type VoiceControl interface {
	JoinUser(ctx context.Context, guildID, userID snowflake.ID) error
	Leave(ctx context.Context) error
	Connected() bool
}

type viewKind int

const (
	viewNone viewKind = iota
	viewControls
	viewQueue
)

// reply is what a command sends back to the channel.
type reply struct {
	content string
	embed   *discord.Embed
	view    viewKind
}

func text(s string) reply {
	return reply{content: s}
}

func embedReply(e discord.Embed, v viewKind) reply {
	return reply{embed: &e, view: v}
}

// invocation is a parsed command message.
type invocation struct {
	guildID     snowflake.ID
	channelID   snowflake.ID
	userID      snowflake.ID
	displayName string
	args        string
}

type command struct {
	name        string
	aliases     []string
	usage       string
	description string
	run         func(h *handler, ctx context.Context, in invocation) reply
}

var commands []command

func init() {
	commands = []command{
		{"play", []string{"p"}, "<song>", "Play a song or add to queue", (*handler).play},
		{"queue", []string{"q"}, "", "Show current queue with buttons", (*handler).queue},
		{"skip", []string{"s"}, "", "Skip current song", (*handler).skip},
		{"stop", nil, "", "Stop music and clear queue", (*handler).stop},
		{"pause", nil, "", "Pause current song", (*handler).pause},
		{"resume", nil, "", "Resume paused song", (*handler).resume},
		{"remove", []string{"rm"}, "<position>", "Remove song from queue", (*handler).remove},
		{"move", []string{"mv"}, "<from> <to>", "Move song in queue", (*handler).move},
		{"shuffle", nil, "", "Shuffle the queue", (*handler).shuffle},
		{"radio", []string{"rad"}, "[on|off]", "Toggle radio mode (auto-queue similar songs)", (*handler).radio},
		{"nowplaying", []string{"np"}, "", "Show currently playing song", (*handler).nowPlaying},
		{"history", []string{"h"}, "", "Show recently played songs", (*handler).history},
		{"connect", []string{"join"}, "", "Connect bot to voice channel", (*handler).connect},
		{"disconnect", []string{"dc"}, "", "Disconnect bot from voice channel", (*handler).disconnect},
		{"help_music", []string{"help"}, "", "Show this help message", (*handler).help},
	}
}

// lookupCommand resolves a command name or alias, case-insensitively.
func lookupCommand(name string) (command, bool) {
	name = strings.ToLower(name)
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// parseCommand splits "<prefix><name> <args>" into the name and the raw argument text.
func parseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	rest, found := strings.CutPrefix(content, prefix)
	if !found || rest == "" || strings.HasPrefix(rest, " ") {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return name, strings.TrimSpace(args), true
}

// parseToggle reads on/off words. ok is false for anything else.
func parseToggle(s string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "yes", "enable":
		return true, true
	case "off", "0", "no", "disable":
		return false, true
	}
	return false, false
}

// handler runs commands against the session.
type handler struct {
	cfg   *config.Config
	ctl   Controller
	voice VoiceControl
}

func (h *handler) dispatch(ctx context.Context, name string, in invocation) (reply, bool) {
	c, ok := lookupCommand(name)
	if !ok {
		return reply{}, false
	}
	zlog.Debug().Msgf("command: name=%s user=%s args=%q", c.name, in.userID, in.args)
	return c.run(h, ctx, in), true
}

func (h *handler) prefix() string {
	return h.cfg.Discord.Prefix
}

func (h *handler) join(ctx context.Context, in invocation) (reply, bool) {
	err := h.voice.JoinUser(ctx, in.guildID, in.userID)
	if err == nil {
		return reply{}, true
	}
	if errors.Is(err, ErrNotInVoice) {
		return text("You need to be in a voice channel to use this command!"), false
	}
	zlog.Error().Msgf("failed to join voice: guild=%s user=%s error=%v", in.guildID, in.userID, err)
	return text("❌ Could not connect to voice channel!"), false
}

func (h *handler) play(ctx context.Context, in invocation) reply {
	if r, ok := h.join(ctx, in); !ok {
		return r
	}

	if in.args == "" {
		current, _ := h.ctl.NowPlaying()
		if current == nil && len(h.ctl.Queue()) == 0 {
			return text(fmt.Sprintf("❌ No song specified and queue is empty! Use `%splay song name` to add a song.", h.prefix()))
		}
		if err := h.ctl.Play(); err != nil {
			return text("❌ " + h.cfg.Messages.DefaultError)
		}
		return text("▶️ Playing from queue.")
	}

	res, err := h.ctl.Request(ctx, session.Requester{
		UserID:      in.userID.String(),
		DisplayName: in.displayName,
	}, in.args)
	if err != nil {
		zlog.Error().Msgf("request failed: user=%s input=%q error=%v", in.userID, in.args, err)
		return text("❌ " + h.cfg.Messages.DefaultError)
	}
	if !res.Accepted {
		return text("❌ " + h.cfg.GetMessage(res.Code))
	}
	if res.Playlist != nil {
		msg := fmt.Sprintf("📂 Added **%d** tracks from **%s**", res.Playlist.Added, res.Playlist.Title)
		if res.Playlist.Rejected > 0 {
			msg += fmt.Sprintf(" (%d skipped)", res.Playlist.Rejected)
		}
		return text(msg)
	}
	if res.Track == nil {
		return text(h.cfg.Messages.Success)
	}
	return embedReply(addedEmbed(*res.Track, res.Position), viewNone)
}

func (h *handler) queue(_ context.Context, _ invocation) reply {
	current, _ := h.ctl.NowPlaying()
	return embedReply(queueEmbed(current, h.ctl.Queue(), h.ctl.Radio()), viewQueue)
}

func (h *handler) skip(_ context.Context, _ invocation) reply {
	if err := h.ctl.Skip(); err != nil {
		return text("Nothing is currently playing!")
	}
	return text("⏭️ Skipped current song!")
}

func (h *handler) stop(_ context.Context, _ invocation) reply {
	if err := h.ctl.Stop(); err != nil {
		return text("❌ " + h.cfg.Messages.DefaultError)
	}
	return text("⏹️ Stopped music and cleared queue!")
}

func (h *handler) pause(_ context.Context, _ invocation) reply {
	if err := h.ctl.Pause(); err != nil {
		return text("Nothing is currently playing!")
	}
	return text("⏸️ Paused!")
}

func (h *handler) resume(_ context.Context, _ invocation) reply {
	if err := h.ctl.Resume(); err != nil {
		return text("Nothing is paused!")
	}
	return text("▶️ Resumed!")
}

// positions parses n whitespace-separated 1-based positions.
func positions(args string, n int) ([]int, bool) {
	fields := strings.Fields(args)
	if len(fields) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (h *handler) queueError(err error) reply {
	switch {
	case errors.Is(err, queue.ErrEmptyQueue):
		return text("Queue is empty!")
	case errors.Is(err, queue.ErrOutOfRange):
		return text(fmt.Sprintf("Invalid position! Queue has %d songs.", len(h.ctl.Queue())))
	case errors.Is(err, queue.ErrInsufficientSize):
		return text("Need at least 2 songs to shuffle!")
	}
	return text("❌ " + h.cfg.Messages.DefaultError)
}

func (h *handler) remove(_ context.Context, in invocation) reply {
	pos, ok := positions(in.args, 1)
	if !ok {
		return text(fmt.Sprintf("Usage: `%sremove <position>`", h.prefix()))
	}
	qt, err := h.ctl.Remove(pos[0])
	if err != nil {
		return h.queueError(err)
	}
	return embedReply(removedEmbed(qt), viewNone)
}

func (h *handler) move(_ context.Context, in invocation) reply {
	pos, ok := positions(in.args, 2)
	if !ok {
		return text(fmt.Sprintf("Usage: `%smove <from> <to>`", h.prefix()))
	}
	qt, err := h.ctl.Move(pos[0], pos[1])
	if err != nil {
		return h.queueError(err)
	}
	return embedReply(movedEmbed(qt, pos[0], pos[1]), viewNone)
}

func (h *handler) shuffle(_ context.Context, _ invocation) reply {
	if err := h.ctl.Shuffle(); err != nil {
		return h.queueError(err)
	}
	return text("🔀 Queue shuffled!")
}

func (h *handler) radio(_ context.Context, in invocation) reply {
	if in.args == "" {
		status := "**OFF**"
		if h.ctl.Radio() {
			status = "**ON** 📻"
		}
		return text(fmt.Sprintf("Radio mode is %s. Use `%sradio on` or `%sradio off` to change.", status, h.prefix(), h.prefix()))
	}
	on, ok := parseToggle(in.args)
	if !ok {
		return text(fmt.Sprintf("Use `%sradio on` or `%sradio off`.", h.prefix(), h.prefix()))
	}
	h.ctl.SetRadio(on)
	if on {
		return text("📻 **Radio mode ON**: similar songs will be auto-queued when the queue runs out.")
	}
	return text("📻 **Radio mode OFF**: queue will stop when empty.")
}

func (h *handler) nowPlaying(_ context.Context, _ invocation) reply {
	current, state := h.ctl.NowPlaying()
	if current == nil {
		return text("Nothing is currently playing!")
	}
	return embedReply(nowPlayingEmbed(*current, state), viewControls)
}

func (h *handler) history(ctx context.Context, _ invocation) reply {
	entries, err := h.ctl.History(ctx, queuePageSize)
	if err != nil {
		zlog.Error().Msgf("failed to read history: %v", err)
		return text("❌ " + h.cfg.Messages.DefaultError)
	}
	return embedReply(historyEmbed(entries), viewNone)
}

func (h *handler) connect(ctx context.Context, in invocation) reply {
	if r, ok := h.join(ctx, in); !ok {
		return r
	}
	return text(fmt.Sprintf("🎵 Connected to voice channel! Use `%splay song name` to start playing music!", h.prefix()))
}

func (h *handler) disconnect(ctx context.Context, _ invocation) reply {
	if !h.voice.Connected() {
		return text("I'm not connected to any voice channel!")
	}
	if err := h.voice.Leave(ctx); err != nil {
		zlog.Warn().Msgf("failed to leave voice: %v", err)
	}
	return text("👋 Disconnected from voice channel!")
}

func (h *handler) help(_ context.Context, _ invocation) reply {
	return embedReply(helpEmbed(h.prefix()), viewNone)
}

// Button custom IDs.
const (
	buttonPause   = "radiobox:pause"
	buttonResume  = "radiobox:resume"
	buttonSkip    = "radiobox:skip"
	buttonStop    = "radiobox:stop"
	buttonRefresh = "radiobox:refresh"
	buttonClear   = "radiobox:clear"
)

// button runs a button press. update is true when the reply replaces the
// message the button belongs to rather than being sent privately.
func (h *handler) button(customID string) (r reply, update bool) {
	switch customID {
	case buttonPause:
		if err := h.ctl.Pause(); err != nil {
			return text("Nothing is currently playing!"), false
		}
		return text("⏸️ Paused!"), false
	case buttonResume:
		if err := h.ctl.Resume(); err != nil {
			return text("Nothing is paused!"), false
		}
		return text("▶️ Resumed!"), false
	case buttonSkip:
		if err := h.ctl.Skip(); err != nil {
			return text("Nothing is currently playing!"), false
		}
		return text("⏭️ Skipped!"), false
	case buttonStop:
		if err := h.ctl.Stop(); err != nil {
			return text("❌ " + h.cfg.Messages.DefaultError), false
		}
		return text("⏹️ Stopped and cleared queue!"), false
	case buttonRefresh:
		return h.queue(context.Background(), invocation{}), true
	case buttonClear:
		h.ctl.Clear()
		return h.queue(context.Background(), invocation{}), true
	}
	return text("Unknown control."), false
}
