package service

import (
	"context"
	"fmt"
	"strconv"

	"jukebox/events"
	"jukebox/models"

	log "github.com/sirupsen/logrus"
)

// MaxHistoryPage caps a single history query
const MaxHistoryPage = 50

// HistoryRecorder implements the HistoryService interface and persists
// playback events from the bus
type HistoryRecorder struct {
	historyRepo HistoryRepository
	sessionRepo SessionRepository
}

// NewHistoryService creates a new history service
func NewHistoryService(historyRepo HistoryRepository, sessionRepo SessionRepository) *HistoryRecorder {
	return &HistoryRecorder{
		historyRepo: historyRepo,
		sessionRepo: sessionRepo,
	}
}

// RegisterHandlers subscribes the service to playback events
func (s *HistoryRecorder) RegisterHandlers(bus *events.Bus) {
	bus.Subscribe(events.EventTypePlayerCreated, s.handle)
	bus.Subscribe(events.EventTypeTrackEnded, s.handle)
	bus.Subscribe(events.EventTypePlayerDestroyed, s.handle)
}

func (s *HistoryRecorder) handle(ctx context.Context, event events.Event) {
	var err error
	switch e := event.(type) {
	case events.PlayerCreatedEvent:
		err = s.HandlePlayerCreated(ctx, e)
	case events.TrackEndedEvent:
		err = s.HandleTrackEnded(ctx, e)
	case events.PlayerDestroyedEvent:
		err = s.HandlePlayerDestroyed(ctx, e)
	default:
		return
	}
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to persist playback event")
	}
}

// HandlePlayerCreated opens a session row
func (s *HistoryRecorder) HandlePlayerCreated(ctx context.Context, e events.PlayerCreatedEvent) error {
	guildID, err := parseSnowflake("guild", e.GuildID)
	if err != nil {
		return err
	}
	voiceID, err := parseSnowflake("voice channel", e.VoiceChannelID)
	if err != nil {
		return err
	}
	textID, err := parseSnowflake("text channel", e.TextChannelID)
	if err != nil {
		return err
	}

	session := &models.PlayerSession{
		ID:             e.SessionID,
		GuildID:        guildID,
		VoiceChannelID: voiceID,
		TextChannelID:  textID,
		StartedAt:      e.CreatedAt,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

// HandleTrackEnded appends a history row
func (s *HistoryRecorder) HandleTrackEnded(ctx context.Context, e events.TrackEndedEvent) error {
	guildID, err := parseSnowflake("guild", e.GuildID)
	if err != nil {
		return err
	}

	info := e.Track.Info
	entry := &models.PlayHistoryEntry{
		GuildID:     guildID,
		SessionID:   e.SessionID,
		Title:       info.Title,
		Author:      info.Author,
		URI:         info.URI,
		Identifier:  info.Identifier,
		SourceName:  info.SourceName,
		DurationMs:  info.DurationMs,
		RequestedBy: e.Track.Requester.Username,
		Outcome:     e.Outcome,
		StartedAt:   e.StartedAt,
		EndedAt:     e.EndedAt,
	}
	if entry.Title == "" {
		entry.Title = info.Identifier
	}

	if err := s.historyRepo.Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record track: %w", err)
	}
	return nil
}

// HandlePlayerDestroyed closes the session row
func (s *HistoryRecorder) HandlePlayerDestroyed(ctx context.Context, e events.PlayerDestroyedEvent) error {
	guildID, err := parseSnowflake("guild", e.GuildID)
	if err != nil {
		return err
	}
	if err := s.sessionRepo.Close(ctx, e.SessionID, guildID, e.Reason, e.TracksPlayed, e.DestroyedAt); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// RecentTracks returns at most MaxHistoryPage entries
func (s *HistoryRecorder) RecentTracks(ctx context.Context, guildID int64, limit int) ([]*models.PlayHistoryEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	limit = min(limit, MaxHistoryPage)

	entries, err := s.historyRepo.ListRecentByGuild(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

// Session returns nil when the session has not been recorded yet
func (s *HistoryRecorder) Session(ctx context.Context, sessionID string) (*models.PlayerSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func parseSnowflake(kind, id string) (int64, error) {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, id, err)
	}
	return v, nil
}
