// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Search provider types.
const (
	ProviderYouTube  = "youtube"
	ProviderYTSearch = "ytsearch"
	ProviderYTMusic  = "ytmusic"
)

// Radio provider types.
const (
	ProviderMix    = "mix"
	ProviderLastFm = "lastfm"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	YouTube  YouTubeConfig           `yaml:"youtube"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Playback PlaybackConfig          `yaml:"playback"`
	Radio    RadioConfig             `yaml:"radio"`
	Search   SearchConfig            `yaml:"search"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	History  HistoryConfig           `yaml:"history"`
	Server   ServerConfig            `yaml:"server"`
	Admin    AdminConfig             `yaml:"admin"`
	Messages MessagesConfig          `yaml:"messages"`
}

// DiscordConfig represents chat gateway configuration.
type DiscordConfig struct {
	Token          string        `yaml:"token" validate:"required"`
	GuildID        string        `yaml:"guild_id"`
	Prefix         string        `yaml:"prefix" default:"!" validate:"required,max=5"`
	Activity       string        `yaml:"activity" default:"!help"`
	ControlTimeout time.Duration `yaml:"control_timeout" default:"30s"`
	QueueTimeout   time.Duration `yaml:"queue_timeout" default:"60s"`
	StayWhenAlone  bool          `yaml:"stay_when_alone"`
}

// YouTubeConfig represents YouTube Data API configuration.
type YouTubeConfig struct {
	APIKey          string        `yaml:"api_key"`
	MusicCategoryID string        `yaml:"music_category_id" default:"10"`
	Timeout         time.Duration `yaml:"timeout" default:"10s"`
}

// SpotifyConfig represents Spotify API configuration. Optional.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Enabled reports whether Spotify link support is configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	MaxSongDuration        int           `yaml:"max_song_duration" default:"600" validate:"gte=0"`
	MaxQueueSize           int           `yaml:"max_queue_size" default:"50" validate:"gte=1"`
	DefaultVolume          float64       `yaml:"default_volume" default:"0.5" validate:"gte=0,lte=2"`
	FFmpegLocation         string        `yaml:"ffmpeg_location" default:"ffmpeg"`
	YtDlpLocation          string        `yaml:"ytdlp_location"`
	YtDlpProxy             string        `yaml:"ytdlp_proxy"`
	ResolveTimeout         time.Duration `yaml:"resolve_timeout" default:"30s"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" default:"5" validate:"gte=1"`
	QueueFile              string        `yaml:"queue_file" default:"queue.json"`
}

// MaxSongDurationValue returns the song length ceiling. Zero means no ceiling.
func (p PlaybackConfig) MaxSongDurationValue() time.Duration {
	return time.Duration(p.MaxSongDuration) * time.Second
}

// RadioConfig represents radio auto-continuation configuration.
type RadioConfig struct {
	Enabled      bool             `yaml:"enabled"`
	RelatedCount int              `yaml:"related_count" default:"5" validate:"gte=1,lte=25"`
	Timeout      time.Duration    `yaml:"timeout" default:"20s"`
	Providers    []ProviderConfig `yaml:"providers" validate:"dive"`
}

// SearchConfig represents the ordered search provider list.
type SearchConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// Name returns the display name, falling back to the type.
func (p ProviderConfig) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Type
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// HistoryConfig represents play history storage configuration.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path" default:"history.db"`
}

// ServerConfig represents control API server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token     string   `yaml:"token" validate:"required"`
	DJUserIDs []string `yaml:"dj_user_ids"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"Added to queue."`
	DefaultError          string `yaml:"default_error" default:"Something went wrong."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"Song is too long."`
	DurationTooShort      string `yaml:"duration_too_short" default:"Song is too short."`
	QueueFull             string `yaml:"queue_full" default:"The queue is full."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That song is already in the queue."`
	UserPending           string `yaml:"user_pending" default:"You already have too many songs waiting."`
	TrackNotFound         string `yaml:"track_not_found" default:"No results found."`
	EmptyPlaylist         string `yaml:"empty_playlist" default:"Nothing from that playlist could be added."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying env overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	cfg.applyProviderDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_GUILD_ID"); v != "" {
		c.Discord.GuildID = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.YouTube.APIKey = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("FFMPEG_LOCATION"); v != "" {
		c.Playback.FFmpegLocation = v
	}
	if v := os.Getenv("YTDLP_PROXY"); v != "" {
		c.Playback.YtDlpProxy = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Radio.Providers {
			if c.Radio.Providers[i].Type == ProviderLastFm {
				if c.Radio.Providers[i].Settings == nil {
					c.Radio.Providers[i].Settings = make(map[string]any)
				}
				c.Radio.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}

	if v := os.Getenv("MAX_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid MAX_QUEUE_SIZE %q", v)
		}
		c.Playback.MaxQueueSize = n
	}
	if v := os.Getenv("MAX_SONG_DURATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid MAX_SONG_DURATION %q", v)
		}
		c.Playback.MaxSongDuration = n
	}
	if v := os.Getenv("DEFAULT_VOLUME"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid DEFAULT_VOLUME %q", v)
		}
		c.Playback.DefaultVolume = f
	}
	return nil
}

// applyProviderDefaults fills in provider lists left empty in the file.
func (c *Config) applyProviderDefaults() {
	if len(c.Search.Providers) == 0 {
		if c.YouTube.APIKey != "" {
			c.Search.Providers = append(c.Search.Providers, ProviderConfig{Type: ProviderYouTube, DisplayName: "YouTube Data API"})
		}
		c.Search.Providers = append(c.Search.Providers, ProviderConfig{Type: ProviderYTSearch, DisplayName: "YouTube search"})
	}
	if len(c.Radio.Providers) == 0 {
		c.Radio.Providers = []ProviderConfig{{Type: ProviderMix, DisplayName: "YouTube Mix"}}
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "duration_too_short":
		return c.Messages.DurationTooShort
	case "queue_full":
		return c.Messages.QueueFull
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "user_pending":
		return c.Messages.UserPending
	case "track_not_found":
		return c.Messages.TrackNotFound
	case "empty_playlist":
		return c.Messages.EmptyPlaylist
	default:
		return c.Messages.DefaultError
	}
}

// IsDJ checks if the given chat user ID bypasses per-user limits.
func (c *Config) IsDJ(userID string) bool {
	for _, id := range c.Admin.DJUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns a copy of a filter's settings, never nil.
func (c *Config) FilterSettings(filterName string) map[string]any {
	settings := make(map[string]any)
	if f, ok := c.Filters[filterName]; ok {
		for k, v := range f.Settings {
			settings[k] = v
		}
	}
	return settings
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateProviders(); err != nil {
		return err
	}

	return nil
}

// validateProviders checks that provider types are known and their prerequisites are present.
func (c *Config) validateProviders() error {
	if len(c.Search.Providers) == 0 {
		return errors.New("at least one search provider is required")
	}
	for i, p := range c.Search.Providers {
		switch p.Type {
		case ProviderYouTube:
			if c.YouTube.APIKey == "" {
				return errors.Newf("search provider %d (%s) requires youtube.api_key", i+1, p.Type)
			}
		case ProviderYTSearch, ProviderYTMusic:
		default:
			return errors.Newf("unsupported search provider type: %s (provider index %d)", p.Type, i+1)
		}
	}
	for i, p := range c.Radio.Providers {
		switch p.Type {
		case ProviderMix, ProviderLastFm:
		default:
			return errors.Newf("unsupported radio provider type: %s (provider index %d)", p.Type, i+1)
		}
	}
	return nil
}
