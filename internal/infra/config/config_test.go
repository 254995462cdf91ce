package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
discord:
  token: discord-token
admin:
  token: admin-token
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Discord.ControlTimeout)
	assert.Equal(t, 60*time.Second, cfg.Discord.QueueTimeout)
	assert.Equal(t, 600, cfg.Playback.MaxSongDuration)
	assert.Equal(t, 10*time.Minute, cfg.Playback.MaxSongDurationValue())
	assert.Equal(t, 50, cfg.Playback.MaxQueueSize)
	assert.InDelta(t, 0.5, cfg.Playback.DefaultVolume, 1e-9)
	assert.Equal(t, "ffmpeg", cfg.Playback.FFmpegLocation)
	assert.Equal(t, 30*time.Second, cfg.Playback.ResolveTimeout)
	assert.Equal(t, 5, cfg.Playback.MaxConsecutiveFailures)
	assert.Equal(t, "queue.json", cfg.Playback.QueueFile)
	assert.False(t, cfg.Radio.Enabled)
	assert.Equal(t, 5, cfg.Radio.RelatedCount)
	assert.Equal(t, "10", cfg.YouTube.MusicCategoryID)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Spotify.Enabled())

	// Without an API key only the keyless search is configured
	require.Len(t, cfg.Search.Providers, 1)
	assert.Equal(t, ProviderYTSearch, cfg.Search.Providers[0].Type)
	require.Len(t, cfg.Radio.Providers, 1)
	assert.Equal(t, ProviderMix, cfg.Radio.Providers[0].Type)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-discord")
	t.Setenv("YOUTUBE_API_KEY", "env-yt")
	t.Setenv("MAX_QUEUE_SIZE", "10")
	t.Setenv("MAX_SONG_DURATION", "300")
	t.Setenv("DEFAULT_VOLUME", "0.8")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")
	t.Setenv("YTDLP_PROXY", "socks5://127.0.0.1:1080")

	cfg, err := Parse([]byte(minimalYAML + `
radio:
  providers:
    - type: mix
    - type: lastfm
`))
	require.NoError(t, err)

	assert.Equal(t, "env-discord", cfg.Discord.Token)
	assert.Equal(t, 10, cfg.Playback.MaxQueueSize)
	assert.Equal(t, 300, cfg.Playback.MaxSongDuration)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Playback.YtDlpProxy)
	assert.InDelta(t, 0.8, cfg.Playback.DefaultVolume, 1e-9)
	assert.Equal(t, "env-lastfm", cfg.Radio.Providers[1].Settings["api_key"])

	// API key puts the Data API first
	require.Len(t, cfg.Search.Providers, 2)
	assert.Equal(t, ProviderYouTube, cfg.Search.Providers[0].Type)
	assert.Equal(t, ProviderYTSearch, cfg.Search.Providers[1].Type)
}

func TestParse_InvalidEnv(t *testing.T) {
	t.Setenv("MAX_QUEUE_SIZE", "lots")
	_, err := Parse([]byte(minimalYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_QUEUE_SIZE")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "missing discord token",
			yaml:   "admin:\n  token: x\n",
			errMsg: "Token",
		},
		{
			name:   "missing admin token",
			yaml:   "discord:\n  token: x\n",
			errMsg: "Token",
		},
		{
			name:   "volume out of range",
			yaml:   minimalYAML + "playback:\n  default_volume: 3\n",
			errMsg: "DefaultVolume",
		},
		{
			name:   "youtube provider without key",
			yaml:   minimalYAML + "search:\n  providers:\n    - type: youtube\n",
			errMsg: "youtube.api_key",
		},
		{
			name:   "unknown search provider",
			yaml:   minimalYAML + "search:\n  providers:\n    - type: bing\n",
			errMsg: "unsupported search provider",
		},
		{
			name:   "unknown radio provider",
			yaml:   minimalYAML + "radio:\n  providers:\n    - type: pandora\n",
			errMsg: "unsupported radio provider",
		},
		{
			name:   "invalid market length",
			yaml:   minimalYAML + "spotify:\n  market: JAPAN\n",
			errMsg: "Market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err, "expected validation to fail")
			assert.Contains(t, err.Error(), tt.errMsg,
				"error message should mention the problematic field")
		})
	}
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + "messages:\n  queue_full: Queue is packed\n"))
	require.NoError(t, err)

	assert.Equal(t, "Queue is packed", cfg.GetMessage("queue_full"))
	assert.Equal(t, "Song is too long.", cfg.GetMessage("duration_limit_exceeded"))
	assert.Equal(t, "Nothing from that playlist could be added.", cfg.GetMessage("empty_playlist"))
	assert.Equal(t, "Something went wrong.", cfg.GetMessage("unknown_code"))
}

func TestConfig_IsDJ(t *testing.T) {
	cfg := &Config{Admin: AdminConfig{DJUserIDs: []string{"111", "222"}}}
	assert.True(t, cfg.IsDJ("222"))
	assert.False(t, cfg.IsDJ("333"))
}

func TestConfig_Filters(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
filters:
  user_pending_filter:
    enabled: true
    settings:
      max_pending: 2
  duplicate_track_filter:
    enabled: false
`))
	require.NoError(t, err)

	assert.True(t, cfg.IsFilterEnabled("user_pending_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("missing_filter"))

	settings := cfg.FilterSettings("user_pending_filter")
	assert.Equal(t, 2, settings["max_pending"])
	settings["max_pending"] = 9
	assert.Equal(t, 2, cfg.Filters["user_pending_filter"].Settings["max_pending"])

	assert.NotNil(t, cfg.FilterSettings("missing_filter"))
}
