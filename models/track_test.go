package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		input    string
		expected LoopMode
		wantErr  bool
	}{
		{"track", LoopTrack, false},
		{"QUEUE", LoopQueue, false},
		{" none ", LoopNone, false},
		{"off", LoopNone, false},
		{"", LoopNone, false},
		{"forever", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseLoopMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestTrack(t *testing.T) {
	track := Track{
		Encoded: "QAAA",
		Info:    TrackInfo{Title: "Song", Author: "Band", Identifier: "abc", DurationMs: 90500},
	}

	assert.True(t, track.Valid())
	assert.False(t, Track{}.Valid())
	assert.Equal(t, "Band - Song", track.DisplayName())
	assert.Equal(t, "Song", Track{Info: TrackInfo{Title: "Song"}}.DisplayName())
	assert.Equal(t, 90500*time.Millisecond, track.Duration())

	other := track
	other.Encoded = "different payload"
	assert.True(t, track.SameAs(other))

	other.Info.Identifier = "xyz"
	assert.False(t, track.SameAs(other))
}
