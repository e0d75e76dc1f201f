package player

import (
	"testing"

	"jukebox/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(title, author string, durationMs int64) models.Track {
	return models.Track{
		Encoded: "enc-" + title,
		Info:    models.TrackInfo{Title: title, Author: author, DurationMs: durationMs},
	}
}

func TestSelectBestTrack(t *testing.T) {
	t.Run("prefers full track over lyric snippet", func(t *testing.T) {
		target := MatchTarget{Title: "Shape of You", Artist: "Ed Sheeran", DurationMs: 233000}
		candidates := []models.Track{
			candidate("Shape of You - Lyrics", "", 30000),
			candidate("Shape of You", "Ed Sheeran", 233500),
		}

		best, ok := SelectBestTrack(target, candidates)

		require.True(t, ok)
		assert.Equal(t, candidates[1], best)
	})

	t.Run("single candidate returned without scoring", func(t *testing.T) {
		only := candidate("Something Else", "Nobody", 1000)
		best, ok := SelectBestTrack(MatchTarget{Title: "Shape of You"}, []models.Track{only})

		require.True(t, ok)
		assert.Equal(t, only, best)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, ok := SelectBestTrack(MatchTarget{Title: "x"}, nil)
		assert.False(t, ok)
	})

	t.Run("ties resolve to earliest candidate", func(t *testing.T) {
		candidates := []models.Track{
			candidate("Song", "Band", 200000),
			candidate("Song", "Band", 200000),
		}
		candidates[1].Encoded = "second"

		best, ok := SelectBestTrack(MatchTarget{Title: "Song", Artist: "Band"}, candidates)

		require.True(t, ok)
		assert.Equal(t, candidates[0].Encoded, best.Encoded)
	})

	t.Run("title comparison is case insensitive", func(t *testing.T) {
		candidates := []models.Track{
			candidate("Bohemian Rhapsody (Live)", "Queen", 300000),
			candidate("BOHEMIAN RHAPSODY", "queen", 300000),
		}

		best, _ := SelectBestTrack(MatchTarget{Title: "bohemian rhapsody", Artist: "Queen"}, candidates)

		assert.Equal(t, candidates[1].Encoded, best.Encoded)
	})

	t.Run("expected duration breaks otherwise equal candidates", func(t *testing.T) {
		candidates := []models.Track{
			candidate("Track", "Artist", 260000),
			candidate("Track", "Artist", 201000),
		}

		best, _ := SelectBestTrack(MatchTarget{Title: "Track", Artist: "Artist", DurationMs: 200000}, candidates)

		assert.Equal(t, candidates[1].Encoded, best.Encoded)
	})
}

func TestScoreCandidate(t *testing.T) {
	tests := []struct {
		name     string
		target   MatchTarget
		cand     models.Track
		expected int
	}{
		{
			name:     "exact title and artist full length with close duration",
			target:   MatchTarget{Title: "Song", Artist: "Band", DurationMs: 200000},
			cand:     candidate("Song", "Band", 201000),
			expected: 50 + 30 + 20 + 15,
		},
		{
			name:     "candidate contains target title",
			target:   MatchTarget{Title: "Song"},
			cand:     candidate("Song (Remastered)", "", 50000),
			expected: 30,
		},
		{
			name:     "target contains candidate title and artist",
			target:   MatchTarget{Title: "Song Extended", Artist: "The Band"},
			cand:     candidate("Song", "Band", 50000),
			expected: 20 + 10,
		},
		{
			name:     "snippet penalty",
			target:   MatchTarget{Title: "Nothing"},
			cand:     candidate("Other", "", 30000),
			expected: -30,
		},
		{
			name:     "duration within fifteen seconds",
			target:   MatchTarget{Title: "x", DurationMs: 100000},
			cand:     candidate("y", "", 110000),
			expected: 20 + 10,
		},
		{
			name:     "duration within thirty seconds",
			target:   MatchTarget{Title: "x", DurationMs: 100000},
			cand:     candidate("y", "", 125000),
			expected: 20 + 5,
		},
		{
			name:     "empty artist on either side scores nothing",
			target:   MatchTarget{Title: "x"},
			cand:     candidate("y", "Band", 50000),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoreCandidate(tt.target, tt.cand))
		})
	}
}

func TestParseMatchTarget(t *testing.T) {
	target, ok := ParseMatchTarget("Ed Sheeran - Shape of You")
	require.True(t, ok)
	assert.Equal(t, "Ed Sheeran", target.Artist)
	assert.Equal(t, "Shape of You", target.Title)

	_, ok = ParseMatchTarget("just a title")
	assert.False(t, ok)

	_, ok = ParseMatchTarget(" - missing artist")
	assert.False(t, ok)
}
