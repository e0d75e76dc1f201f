package service

import (
	"context"
	"time"

	"jukebox/models"
)

// HistoryRepository defines the interface for play history storage
type HistoryRepository interface {
	// Record inserts a history entry and sets its ID
	Record(ctx context.Context, entry *models.PlayHistoryEntry) error

	// ListRecentByGuild returns up to limit entries for a guild, newest first
	ListRecentByGuild(ctx context.Context, guildID int64, limit int) ([]*models.PlayHistoryEntry, error)
}

// SessionRepository defines the interface for player session storage
type SessionRepository interface {
	// Create inserts a player session
	Create(ctx context.Context, session *models.PlayerSession) error

	// GetByID returns nil when the session does not exist
	GetByID(ctx context.Context, id string) (*models.PlayerSession, error)

	// Close marks a session as ended, keeping the first close
	Close(ctx context.Context, id string, guildID int64, reason string, tracksPlayed int, endedAt time.Time) error
}

// HistoryService records playback and answers history queries
type HistoryService interface {
	// RecentTracks returns what a guild has played recently, newest first
	RecentTracks(ctx context.Context, guildID int64, limit int) ([]*models.PlayHistoryEntry, error)

	// Session returns a recorded player session
	Session(ctx context.Context, sessionID string) (*models.PlayerSession, error)
}
