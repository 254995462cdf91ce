package radio

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/resolver"
	"github.com/osa030/radiobox/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain tries similarity providers in order.
// The first provider that answers with results wins. The chain fails only when
// every provider failed outright; providers that answer empty do not count as failures.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Related returns related tracks from the first provider that has any.
func (c *ProviderChain) Related(ctx context.Context, seed track.Track, limit int) ([]track.Track, error) {
	answered := false
	var lastErr error

	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying radio provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		results, err := pm.Provider.Related(ctx, seed, limit)
		if err != nil {
			zlog.Warn().Msgf("radio provider failed, trying next: provider=%s seed=%s error=%v", pm.DisplayName, seed.ID, err)
			lastErr = err
			continue
		}
		answered = true

		if len(results) == 0 {
			zlog.Debug().Msgf("radio provider returned no tracks: provider=%s seed=%s", pm.DisplayName, seed.ID)
			continue
		}

		zlog.Info().Msgf("radio provider returned tracks: provider=%s seed=%s count=%d", pm.DisplayName, seed.ID, len(results))
		return results, nil
	}

	if answered {
		return []track.Track{}, nil
	}
	if lastErr == nil {
		return nil, errors.Wrap(resolver.ErrProviderUnavailable, "no radio providers configured")
	}
	return nil, errors.Mark(errors.Wrap(lastErr, "all radio providers failed"), resolver.ErrProviderUnavailable)
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}

// Len returns the number of providers in the chain.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}
