package radio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/infra/config"
)

// NewProviderChainFromConfig creates a radio provider chain from configuration.
func NewProviderChainFromConfig(cfg *config.Config, search Searcher, mix MixSource) (*ProviderChain, error) {
	if len(cfg.Radio.Providers) == 0 {
		return nil, errors.New("no radio providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Radio.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating radio provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case config.ProviderMix:
			provider, err = NewMixProvider(mix)

		case config.ProviderLastFm:
			provider, err = NewLastFmProvider(search, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.Name(),
		})

		zlog.Info().Msgf("registered radio provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.Name())
	}

	return NewProviderChain(providers), nil
}
