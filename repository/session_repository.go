package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jukebox/database"
	"jukebox/models"

	"github.com/jackc/pgx/v5"
)

// SessionRepository implements the SessionRepository interface
type SessionRepository struct {
	db *database.DB
	q  queryable
}

// NewSessionRepository creates a new player session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db, q: db.Pool}
}

// Create inserts a session. Events are delivered asynchronously, so the
// row may already exist if the session was closed first; that row wins.
func (r *SessionRepository) Create(ctx context.Context, session *models.PlayerSession) error {
	query := `
		INSERT INTO player_sessions (id, guild_id, voice_channel_id, text_channel_id, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET voice_channel_id = EXCLUDED.voice_channel_id,
		    text_channel_id = EXCLUDED.text_channel_id,
		    started_at = EXCLUDED.started_at
	`
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}

	_, err := r.q.Exec(ctx, query,
		session.ID,
		session.GuildID,
		session.VoiceChannelID,
		session.TextChannelID,
		session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create player session %s: %w", session.ID, err)
	}
	return nil
}

// GetByID returns nil when the session does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.PlayerSession, error) {
	return getSession(ctx, r.q, id, false)
}

// Close marks a session as ended. Closing twice keeps the first reason.
// tracksPlayed never lowers a count already recorded from history.
func (r *SessionRepository) Close(ctx context.Context, id string, guildID int64, reason string, tracksPlayed int, endedAt time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		session, err := getSession(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if session == nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO player_sessions (
					id, guild_id, voice_channel_id, text_channel_id,
					tracks_played, end_reason, started_at, ended_at
				)
				VALUES ($1, $2, 0, 0, $3, $4, $5, $5)
			`, id, guildID, tracksPlayed, reason, endedAt)
			if err != nil {
				return fmt.Errorf("failed to insert closed session %s: %w", id, err)
			}
			return nil
		}

		if session.EndedAt != nil {
			return nil
		}

		played, err := newHistoryRepositoryWithTx(tx).CountBySession(ctx, id, models.OutcomeFinished)
		if err != nil {
			return err
		}
		played = max(played, tracksPlayed)

		_, err = tx.Exec(ctx, `
			UPDATE player_sessions
			SET tracks_played = $2, end_reason = $3, ended_at = $4
			WHERE id = $1
		`, id, played, reason, endedAt)
		if err != nil {
			return fmt.Errorf("failed to close session %s: %w", id, err)
		}
		return nil
	})
}

func getSession(ctx context.Context, q queryable, id string, forUpdate bool) (*models.PlayerSession, error) {
	query := `
		SELECT id, guild_id, voice_channel_id, text_channel_id, tracks_played,
		       end_reason, started_at, ended_at
		FROM player_sessions
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var session models.PlayerSession
	err := q.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.GuildID,
		&session.VoiceChannelID,
		&session.TextChannelID,
		&session.TracksPlayed,
		&session.EndReason,
		&session.StartedAt,
		&session.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player session %s: %w", id, err)
	}
	return &session, nil
}
