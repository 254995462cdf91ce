package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		minSeconds    int
		maxSeconds    int
		trackDuration time.Duration
		wantCode      string
	}{
		{name: "within limits", minSeconds: 60, maxSeconds: 600, trackDuration: 3 * time.Minute},
		{name: "exactly max", maxSeconds: 600, trackDuration: 10 * time.Minute},
		{name: "too long", maxSeconds: 600, trackDuration: 10*time.Minute + time.Second, wantCode: "duration_limit_exceeded"},
		{name: "too short", minSeconds: 60, maxSeconds: 600, trackDuration: 30 * time.Second, wantCode: "duration_too_short"},
		{name: "exactly min", minSeconds: 60, trackDuration: time.Minute},
		{name: "no max", maxSeconds: 0, trackDuration: 3 * time.Hour},
		{name: "unknown duration accepted", minSeconds: 60, maxSeconds: 600, trackDuration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			require.NoError(t, f.ValidateConfig(map[string]any{
				"min_seconds": tt.minSeconds,
				"max_seconds": tt.maxSeconds,
			}))

			result := f.Check(context.Background(), track.Track{ID: "x", Duration: tt.trackDuration}, &listener.Session{})
			if tt.wantCode == "" {
				assert.True(t, result.Accepted)
				return
			}
			assert.False(t, result.Accepted)
			assert.Equal(t, tt.wantCode, result.Code)
		})
	}
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{name: "empty settings", settings: nil},
		{name: "max only", settings: map[string]any{"max_seconds": 600}},
		{name: "string values", settings: map[string]any{"max_seconds": "600"}},
		{name: "negative max", settings: map[string]any{"max_seconds": -1}, wantErr: true},
		{name: "min greater than max", settings: map[string]any{"min_seconds": 700, "max_seconds": 600}, wantErr: true},
		{name: "wrong type", settings: map[string]any{"max_seconds": []int{1}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDurationLimitFilter().ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationLimitFilter_Unconfigured(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.True(t, f.Check(context.Background(), track.Track{Duration: 5 * time.Hour}, nil).Accepted)
}
