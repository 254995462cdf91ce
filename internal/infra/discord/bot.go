// Package discord is the chat front end: prefix commands, button views, the voice
// connection and playback announcements.
package discord

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/infra/config"
)

// Bot is the Discord gateway client.
type Bot struct {
	cfg     *config.Config
	guildID snowflake.ID // Zero accepts commands from any guild

	client        *bot.Client
	handler       *handler
	voice         *voiceManager
	views         *views
	announcer     *Announcer
	notifications *notification.Manager
	subscription  string
}

// New creates the bot. Nothing connects until Start.
func New(cfg *config.Config, ctl Controller, transport *Transport, notifications *notification.Manager) (*Bot, error) {
	b := &Bot{
		cfg:           cfg,
		notifications: notifications,
	}

	if cfg.Discord.GuildID != "" {
		id, err := snowflake.Parse(cfg.Discord.GuildID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid guild id %q", cfg.Discord.GuildID)
		}
		b.guildID = id
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentGuildVoiceStates,
			),
			gateway.WithPresenceOpts(gateway.WithListeningActivity(cfg.Discord.Activity)),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagMembers, cache.FlagVoiceStates),
		),
		bot.WithEventManagerConfigOpts(bot.WithAsyncEventsEnabled()),
		bot.WithEventListenerFunc(b.onReady),
		bot.WithEventListenerFunc(b.onMessage),
		bot.WithEventListenerFunc(b.onComponent),
		bot.WithEventListenerFunc(b.onVoiceStateUpdate),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord client")
	}
	b.client = client

	b.voice = &voiceManager{
		client:        client,
		transport:     transport,
		stopPlayback:  ctl.Stop,
		stayWhenAlone: cfg.Discord.StayWhenAlone,
	}
	b.handler = &handler{cfg: cfg, ctl: ctl, voice: b.voice}
	b.views = newViews(cfg.Discord.ControlTimeout, cfg.Discord.QueueTimeout, b)
	b.announcer = newAnnouncer(b.post)
	return b, nil
}

// Start opens the gateway and subscribes to playback notifications.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.client.OpenGateway(ctx); err != nil {
		return errors.Wrap(err, "failed to open gateway")
	}
	b.subscription = b.notifications.Subscribe(b.announcer)
	return nil
}

// Close leaves voice and disconnects from the gateway.
func (b *Bot) Close(ctx context.Context) {
	if b.subscription != "" {
		b.notifications.Unsubscribe(b.subscription)
	}
	b.views.stopAll()
	if err := b.voice.Leave(ctx); err != nil {
		zlog.Warn().Msgf("failed to leave voice on shutdown: %v", err)
	}
	b.announcer.Close()
	b.client.Close(ctx)
}

func (b *Bot) onReady(e *events.Ready) {
	zlog.Info().Msgf("discord connected: user=%s guilds=%d", e.User.Username, len(e.Guilds))
}

func (b *Bot) onMessage(e *events.GuildMessageCreate) {
	if e.Message.Author.Bot {
		return
	}
	if b.guildID != 0 && e.GuildID != b.guildID {
		return
	}
	name, args, ok := parseCommand(b.cfg.Discord.Prefix, e.Message.Content)
	if !ok {
		return
	}

	in := invocation{
		guildID:     e.GuildID,
		channelID:   e.ChannelID,
		userID:      e.Message.Author.ID,
		displayName: e.Message.Author.EffectiveName(),
		args:        args,
	}
	if e.Message.Member != nil && e.Message.Member.Nick != nil {
		in.displayName = *e.Message.Member.Nick
	}

	r, found := b.handler.dispatch(context.Background(), name, in)
	if !found {
		return
	}
	b.announcer.SetChannel(e.ChannelID)
	b.post(e.ChannelID, r)
}

func (b *Bot) onComponent(e *events.ComponentInteractionCreate) {
	if !b.views.live(e.Message.ID) {
		b.respondEphemeral(e, "This control has expired.")
		return
	}

	r, update := b.handler.button(e.Data.CustomID())
	if !update {
		b.respondEphemeral(e, r.content)
		return
	}

	mu := discord.NewMessageUpdateBuilder()
	if r.embed != nil {
		mu.SetEmbeds(*r.embed)
	}
	if err := e.UpdateMessage(mu.Build()); err != nil {
		zlog.Warn().Msgf("failed to update message: %v", err)
	}
}

func (b *Bot) respondEphemeral(e *events.ComponentInteractionCreate, content string) {
	msg := discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build()
	if err := e.CreateMessage(msg); err != nil {
		zlog.Warn().Msgf("failed to respond to interaction: %v", err)
	}
}

func (b *Bot) onVoiceStateUpdate(e *events.GuildVoiceStateUpdate) {
	b.voice.onVoiceStateUpdate(e)
}

// post sends a reply and starts the expiry of its buttons.
func (b *Bot) post(channelID snowflake.ID, r reply) {
	mb := discord.NewMessageCreateBuilder()
	if r.content != "" {
		mb.SetContent(r.content)
	}
	if r.embed != nil {
		mb.SetEmbeds(*r.embed)
	}
	if buttons := viewButtons(r.view, false); len(buttons) > 0 {
		mb.AddActionRow(buttons...)
	}

	msg, err := b.client.Rest.CreateMessage(channelID, mb.Build())
	if err != nil {
		zlog.Error().Msgf("failed to send message: channel=%s error=%v", channelID, err)
		return
	}
	b.views.track(channelID, msg.ID, r.view)
}

// expire replaces a view's buttons with disabled copies.
func (b *Bot) expire(channelID, messageID snowflake.ID, kind viewKind) {
	mu := discord.NewMessageUpdateBuilder().AddActionRow(viewButtons(kind, true)...)
	if _, err := b.client.Rest.UpdateMessage(channelID, messageID, mu.Build()); err != nil {
		zlog.Debug().Msgf("failed to disable expired view: message=%s error=%v", messageID, err)
	}
}
