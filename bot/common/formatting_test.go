package common

import (
	"testing"
	"time"

	"jukebox/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59 * time.Second, "0:59"},
		{3*time.Minute + 5*time.Second, "3:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{1500 * time.Millisecond, "0:01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestFormatTrackLength(t *testing.T) {
	track := models.Track{Info: models.TrackInfo{DurationMs: 185000}}
	assert.Equal(t, "3:05", FormatTrackLength(track))

	track.Info.IsStream = true
	assert.Equal(t, "LIVE", FormatTrackLength(track))
}

func TestFormatTrackLink(t *testing.T) {
	track := models.Track{Info: models.TrackInfo{Title: "Song_1", Author: "Band", URI: "https://example.com/x"}}
	assert.Equal(t, `[Band - Song\_1](https://example.com/x)`, FormatTrackLink(track))

	track.Info.URI = ""
	assert.Equal(t, `Band - Song\_1`, FormatTrackLink(track))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "🔘▬▬▬▬", ProgressBar(0, time.Minute, 5))
	assert.Equal(t, "▬▬🔘▬▬", ProgressBar(30*time.Second, time.Minute, 5))
	assert.Equal(t, "▬▬▬▬🔘", ProgressBar(2*time.Minute, time.Minute, 5))
	assert.Equal(t, "🔘▬▬", ProgressBar(time.Second, 0, 3))
	assert.Equal(t, "", ProgressBar(time.Second, time.Minute, 0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "äöü…", Truncate("äöüßxyz", 4))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\*\*bold\*\* \_x\_ \~\~`, EscapeMarkdown("**bold** _x_ ~~"))
}
