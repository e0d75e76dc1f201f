package player

import (
	"strings"

	"jukebox/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MatchTarget is what the user asked for. DurationMs is zero when unknown.
type MatchTarget struct {
	Title      string
	Artist     string
	DurationMs int64
}

// SelectBestTrack scores every candidate against the target and returns the
// highest-scoring one. Ties go to the earliest candidate. ok is false only
// when there are no candidates.
func SelectBestTrack(target MatchTarget, candidates []models.Track) (best models.Track, ok bool) {
	switch len(candidates) {
	case 0:
		return models.Track{}, false
	case 1:
		return candidates[0], true
	}

	bestIdx, bestScore := 0, scoreCandidate(target, candidates[0])
	for i := 1; i < len(candidates); i++ {
		if s := scoreCandidate(target, candidates[i]); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	return candidates[bestIdx], true
}

func scoreCandidate(target MatchTarget, c models.Track) int {
	score := textScore(fold(target.Title), fold(c.Info.Title), 50, 30, 20)
	score += textScore(fold(target.Artist), fold(c.Info.Author), 30, 20, 10)

	// Full-length tracks over previews and snippets
	if c.Info.DurationMs > 60_000 {
		score += 20
	} else if c.Info.DurationMs < 45_000 {
		score -= 30
	}

	if target.DurationMs > 0 {
		diff := target.DurationMs - c.Info.DurationMs
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff < 5_000:
			score += 15
		case diff < 15_000:
			score += 10
		case diff < 30_000:
			score += 5
		}
	}
	return score
}

// textScore awards exact, then candidate-contains-target, then target-contains-candidate
func textScore(target, candidate string, exact, candContains, targetContains int) int {
	if target == "" || candidate == "" {
		return 0
	}
	switch {
	case target == candidate:
		return exact
	case strings.Contains(candidate, target):
		return candContains
	case strings.Contains(target, candidate):
		return targetContains
	}
	return 0
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// ParseMatchTarget splits "Artist - Title" input. ok is false when the query
// has no artist separator.
func ParseMatchTarget(query string) (MatchTarget, bool) {
	artist, title, found := strings.Cut(query, " - ")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !found || artist == "" || title == "" {
		return MatchTarget{}, false
	}
	return MatchTarget{Title: title, Artist: artist}, true
}
