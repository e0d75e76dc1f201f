package music

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardGenerator_Render(t *testing.T) {
	gen, err := NewCardGenerator()
	require.NoError(t, err)

	track := testTrack("A very long title that will certainly not fit on a single line of the card at all", 240)

	data, err := gen.Render(track, 90*time.Second, false)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, cardWidth, img.Bounds().Dx())
	assert.Equal(t, cardHeight, img.Bounds().Dy())
}

func TestCardGenerator_RenderStream(t *testing.T) {
	gen, err := NewCardGenerator()
	require.NoError(t, err)

	track := testTrack("radio", 0)
	track.Info.IsStream = true

	data, err := gen.Render(track, time.Hour, true)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestProgressFraction(t *testing.T) {
	track := testTrack("x", 100)
	assert.InDelta(t, 0.5, progressFraction(track, 50*time.Second), 1e-9)
	assert.Equal(t, 1.0, progressFraction(track, 200*time.Second))
	assert.Equal(t, 0.0, progressFraction(track, -time.Second))

	track.Info.IsStream = true
	assert.Equal(t, 0.0, progressFraction(track, 50*time.Second))
}
