package filter

import (
	"context"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// UserPendingConfig represents the configuration for UserPendingFilter.
type UserPendingConfig struct {
	MaxPending int `yaml:"max_pending" mapstructure:"max_pending" default:"3" validate:"gte=1"`
}

// UserPendingFilter caps how many not-yet-played tracks one user may have queued.
type UserPendingFilter struct {
	config *UserPendingConfig
}

func (f *UserPendingFilter) Name() string {
	return "user_pending_filter"
}

func (f *UserPendingFilter) Description() string {
	return "Limits tracks waiting to be played per user; DJs are exempt"
}

func (f *UserPendingFilter) ReturnCodes() []string {
	return []string{"user_pending"}
}

func (f *UserPendingFilter) ValidateConfig(settings map[string]any) error {
	var config UserPendingConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	return nil
}

func (f *UserPendingFilter) AppliesTo(requesterType track.RequesterType) bool {
	// Pending track limits only apply to user requests
	return requesterType == track.RequesterTypeUser
}

func (f *UserPendingFilter) Check(ctx context.Context, t track.Track, l *listener.Session) Result {
	if l == nil {
		return Accept()
	}
	maxPending := 1
	if f.config != nil {
		maxPending = f.config.MaxPending
	}
	if !l.CanRequest(maxPending) {
		return Reject("user_pending")
	}
	return Accept()
}

func init() {
	Register("user_pending_filter", func() Filter {
		return &UserPendingFilter{}
	})
}
