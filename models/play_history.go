package models

import "time"

// PlaybackOutcome records how a track left the player
type PlaybackOutcome string

const (
	OutcomeFinished PlaybackOutcome = "finished"
	OutcomeStopped  PlaybackOutcome = "stopped"
	OutcomeFailed   PlaybackOutcome = "failed"
	OutcomeInvalid  PlaybackOutcome = "invalid"
)

// PlayHistoryEntry is one row of the play_history audit table
type PlayHistoryEntry struct {
	ID          int64           `db:"id"`
	GuildID     int64           `db:"guild_id"`
	SessionID   string          `db:"session_id"`
	Title       string          `db:"title"`
	Author      string          `db:"author"`
	URI         string          `db:"uri"`
	Identifier  string          `db:"identifier"`
	SourceName  string          `db:"source_name"`
	DurationMs  int64           `db:"duration_ms"`
	RequestedBy string          `db:"requested_by"`
	Outcome     PlaybackOutcome `db:"outcome"`
	StartedAt   time.Time       `db:"started_at"`
	EndedAt     time.Time       `db:"ended_at"`
}

// PlayerSession tracks the lifetime of one dispatcher in a guild
type PlayerSession struct {
	ID             string     `db:"id"`
	GuildID        int64      `db:"guild_id"`
	VoiceChannelID int64      `db:"voice_channel_id"`
	TextChannelID  int64      `db:"text_channel_id"`
	TracksPlayed   int        `db:"tracks_played"`
	EndReason      *string    `db:"end_reason"`
	StartedAt      time.Time  `db:"started_at"`
	EndedAt        *time.Time `db:"ended_at"`
}
