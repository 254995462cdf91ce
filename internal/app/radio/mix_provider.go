package radio

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/radiobox/internal/domain/track"
)

// MixProvider uses the video site's auto-generated mix for the seed video.
type MixProvider struct {
	source MixSource
}

// NewMixProvider creates a MixProvider.
func NewMixProvider(source MixSource) (*MixProvider, error) {
	if source == nil {
		return nil, errors.New("mix source is required")
	}
	return &MixProvider{source: source}, nil
}

// Related returns the mix entries for the seed.
func (p *MixProvider) Related(ctx context.Context, seed track.Track, limit int) ([]track.Track, error) {
	return p.source.Mix(ctx, seed.ID, limit)
}

// Name returns the provider name.
func (p *MixProvider) Name() string {
	return "mix"
}
