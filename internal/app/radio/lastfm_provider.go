package radio

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
}

// LastFmProviderConfig represents the lastfm provider settings block.
type LastFmProviderConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	MinMatch  float64 `yaml:"min_match" mapstructure:"min_match" validate:"gte=0,lte=1"`
	Overfetch int     `yaml:"overfetch" mapstructure:"overfetch" default:"2" validate:"gte=1,lte=5"`
}

// LastFmProvider finds similar songs on Last.fm and maps each one back to a
// playable video through keyword search.
type LastFmProvider struct {
	lastfm LastFmClient
	search Searcher
	config *LastFmProviderConfig
}

// NewLastFmProvider creates a new LastFmProvider from a settings map.
func NewLastFmProvider(search Searcher, settings map[string]any) (*LastFmProvider, error) {
	if search == nil {
		return nil, errors.New("searcher is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return newLastFmProvider(client, search, &config), nil
}

func newLastFmProvider(client LastFmClient, search Searcher, config *LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{lastfm: client, search: search, config: config}
}

// Related looks up similar songs for the seed and resolves each to a video.
func (p *LastFmProvider) Related(ctx context.Context, seed track.Track, limit int) ([]track.Track, error) {
	title, artist := CleanTitle(seed.Title), CleanArtist(seed.Artist)
	if title == "" || artist == "" {
		return nil, errors.Newf("seed %s has no usable title/artist", seed.ID)
	}

	similar, err := p.lastfm.GetSimilarTracks(ctx, title, artist, limit*p.config.Overfetch)
	if err != nil {
		return nil, errors.Wrap(err, "last.fm similar lookup failed")
	}

	result := make([]track.Track, 0, limit)
	seen := map[string]bool{seed.ID: true}
	for _, s := range similar {
		if len(result) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if s.Match < p.config.MinMatch {
			continue
		}

		query := strings.TrimSpace(s.Artist + " " + s.Name)
		found := p.search.Search(ctx, query, 1)
		if len(found) == 0 || seen[found[0].ID] {
			continue
		}
		seen[found[0].ID] = true
		result = append(result, found[0])
	}

	zlog.Debug().Msgf("last.fm radio: seed=%s similar=%d resolved=%d", seed.ID, len(similar), len(result))
	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}
