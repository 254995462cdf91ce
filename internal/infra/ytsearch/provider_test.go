package ytsearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToTrack(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		expected time.Duration
	}{
		{"clock", "3:20", 3*time.Minute + 20*time.Second},
		{"hours", "1:05:20", time.Hour + 5*time.Minute + 20*time.Second},
		{"live", "", 0},
		{"garbage", "LIVE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toTrack("dQw4w9WgXcQ", "Title", "Channel", tt.duration)
			assert.Equal(t, tt.expected, got.Duration)
			assert.Equal(t, "dQw4w9WgXcQ", got.ID)
			assert.Equal(t, "Channel", got.Artist)
			assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", got.URL)
			assert.Contains(t, got.Thumbnail, "dQw4w9WgXcQ")
		})
	}
}

func TestProvider_Name(t *testing.T) {
	assert.Equal(t, "ytsearch", New(nil).Name())
}
