package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinSeconds int `yaml:"min_seconds" mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds int `yaml:"max_seconds" mapstructure:"max_seconds" validate:"gte=0"`
}

// DurationLimitFilter keeps over-long (and optionally too short) tracks out of the queue.
// Tracks whose duration the provider did not report are accepted.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks longer than max_seconds or shorter than min_seconds"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded", "duration_too_short"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	// min_seconds cannot be greater than max_seconds
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.New("min_seconds cannot be greater than max_seconds")
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: min_seconds=%d max_seconds=%d", config.MinSeconds, config.MaxSeconds)
	return nil
}

// AppliesTo applies to every requester type so user, playlist and radio paths agree.
func (f *DurationLimitFilter) AppliesTo(requesterType track.RequesterType) bool {
	return true
}

func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track, l *listener.Session) Result {
	if f.config == nil || !t.HasDuration() {
		return Accept()
	}

	if t.ExceedsDuration(time.Duration(f.config.MaxSeconds) * time.Second) {
		return Reject("duration_limit_exceeded")
	}
	if f.config.MinSeconds > 0 && t.Duration < time.Duration(f.config.MinSeconds)*time.Second {
		return Reject("duration_too_short")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return &DurationLimitFilter{}
	})
}
