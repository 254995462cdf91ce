package filter

import (
	"context"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxSize int `yaml:"max_size" mapstructure:"max_size" default:"50" validate:"gte=1"`
}

// QueueLimitFilter rejects requests once the queue holds max_size tracks.
type QueueLimitFilter struct {
	length func() int
	config *QueueLimitConfig
}

// NewQueueLimitFilter creates a queue limit filter reading the queue length from length.
func NewQueueLimitFilter(length func() int) *QueueLimitFilter {
	return &QueueLimitFilter{length: length}
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Rejects requests while the queue is full"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	return nil
}

// AppliesTo limits user and playlist additions. Radio continuations only run on an empty queue.
func (f *QueueLimitFilter) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser || requesterType == track.RequesterTypePlaylist
}

func (f *QueueLimitFilter) Check(ctx context.Context, t track.Track, l *listener.Session) Result {
	if f.config == nil || f.length == nil {
		return Accept()
	}
	if f.length() >= f.config.MaxSize {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func() Filter {
		return &QueueLimitFilter{}
	})
}
