package discord

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
)

// voiceManager owns the single voice connection and hands it to the transport.
type voiceManager struct {
	client        *bot.Client
	transport     *Transport
	stopPlayback  func() error
	stayWhenAlone bool

	mu        sync.Mutex
	conn      voice.Conn
	guildID   snowflake.ID
	channelID snowflake.ID
}

// JoinUser joins the voice channel the user is in, moving if already connected elsewhere.
func (v *voiceManager) JoinUser(ctx context.Context, guildID, userID snowflake.ID) error {
	state, ok := v.client.Caches.VoiceState(guildID, userID)
	if !ok || state.ChannelID == nil {
		return ErrNotInVoice
	}
	return v.join(ctx, guildID, *state.ChannelID)
}

func (v *voiceManager) join(ctx context.Context, guildID, channelID snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn != nil && v.guildID == guildID && v.channelID == channelID {
		return nil
	}

	conn := v.conn
	if conn == nil || v.guildID != guildID {
		conn = v.client.VoiceManager.CreateConn(guildID)
	}
	if err := conn.Open(ctx, channelID, false, true); err != nil {
		conn.Close(ctx)
		return errors.Wrapf(err, "failed to open voice connection to %s", channelID)
	}

	zlog.Info().Msgf("joined voice channel: guild=%s channel=%s", guildID, channelID)
	v.conn, v.guildID, v.channelID = conn, guildID, channelID
	v.transport.SetSink(conn)
	return nil
}

// Leave stops playback and disconnects.
func (v *voiceManager) Leave(ctx context.Context) error {
	v.mu.Lock()
	conn := v.conn
	v.conn, v.channelID = nil, 0
	v.mu.Unlock()

	if conn == nil {
		return nil
	}
	if v.stopPlayback != nil {
		if err := v.stopPlayback(); err != nil {
			zlog.Warn().Msgf("failed to stop playback on leave: %v", err)
		}
	}
	v.transport.SetSink(nil)
	conn.Close(ctx)
	zlog.Info().Msg("left voice channel")
	return nil
}

// Connected reports whether a voice connection is open.
func (v *voiceManager) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn != nil
}

func (v *voiceManager) channel() (guildID, channelID snowflake.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.guildID, v.channelID
}

// onVoiceStateUpdate follows the bot's own moves and leaves when no listener remains.
func (v *voiceManager) onVoiceStateUpdate(e *events.GuildVoiceStateUpdate) {
	guildID, channelID := v.channel()
	if channelID == 0 || e.VoiceState.GuildID != guildID {
		return
	}

	if e.VoiceState.UserID == e.Client().ID() {
		if e.VoiceState.ChannelID == nil {
			zlog.Info().Msgf("bot disconnected externally: guild=%s", guildID)
			_ = v.Leave(context.Background())
			return
		}
		if *e.VoiceState.ChannelID != channelID {
			v.mu.Lock()
			v.channelID = *e.VoiceState.ChannelID
			v.mu.Unlock()
		}
		return
	}

	if v.stayWhenAlone {
		return
	}
	if v.listeners(e.Client(), guildID, channelID) == 0 {
		zlog.Info().Msgf("no listeners left, disconnecting: guild=%s channel=%s", guildID, channelID)
		_ = v.Leave(context.Background())
	}
}

// listeners counts non-bot users in the channel.
func (v *voiceManager) listeners(client *bot.Client, guildID, channelID snowflake.ID) int {
	n := 0
	for state := range client.Caches.VoiceStates(guildID) {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == client.ID() {
			continue
		}
		if m, ok := client.Caches.Member(guildID, state.UserID); ok && m.User.Bot {
			continue
		}
		n++
	}
	return n
}
