package testutil

import (
	"time"

	"jukebox/models"

	"github.com/google/uuid"
)

// CreateTestSession creates an open player session for a guild
func CreateTestSession(guildID int64) *models.PlayerSession {
	return &models.PlayerSession{
		ID:             uuid.NewString(),
		GuildID:        guildID,
		VoiceChannelID: 2001,
		TextChannelID:  3001,
		StartedAt:      time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond),
	}
}

// CreateTestHistoryEntry creates a finished play history entry
func CreateTestHistoryEntry(guildID int64, sessionID, title string) *models.PlayHistoryEntry {
	ended := time.Now().UTC().Truncate(time.Microsecond)
	return &models.PlayHistoryEntry{
		GuildID:     guildID,
		SessionID:   sessionID,
		Title:       title,
		Author:      "Test Artist",
		URI:         "https://example.com/" + title,
		Identifier:  "id-" + title,
		SourceName:  "youtube",
		DurationMs:  180000,
		RequestedBy: "tester",
		Outcome:     models.OutcomeFinished,
		StartedAt:   ended.Add(-3 * time.Minute),
		EndedAt:     ended,
	}
}

// CreateTestHistoryEntryWithOutcome creates an entry with a specific outcome and end time
func CreateTestHistoryEntryWithOutcome(guildID int64, sessionID, title string, outcome models.PlaybackOutcome, endedAt time.Time) *models.PlayHistoryEntry {
	entry := CreateTestHistoryEntry(guildID, sessionID, title)
	entry.Outcome = outcome
	entry.EndedAt = endedAt.UTC().Truncate(time.Microsecond)
	entry.StartedAt = entry.EndedAt.Add(-time.Minute)
	return entry
}
