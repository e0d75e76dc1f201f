package repository

import (
	"context"
	"fmt"
	"time"

	"jukebox/database"
	"jukebox/models"

	"github.com/jackc/pgx/v5"
)

// HistoryRepository implements the HistoryRepository interface
type HistoryRepository struct {
	q queryable
}

// NewHistoryRepository creates a new play history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{q: db.Pool}
}

func newHistoryRepositoryWithTx(tx queryable) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

// Record inserts entry and fills in its generated ID
func (r *HistoryRepository) Record(ctx context.Context, entry *models.PlayHistoryEntry) error {
	query := `
		INSERT INTO play_history (
			guild_id, session_id, title, author, uri, identifier, source_name,
			duration_ms, requested_by, outcome, started_at, ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var startedAt *time.Time
	if !entry.StartedAt.IsZero() {
		startedAt = &entry.StartedAt
	}
	if entry.EndedAt.IsZero() {
		entry.EndedAt = time.Now()
	}

	err := r.q.QueryRow(ctx, query,
		entry.GuildID,
		entry.SessionID,
		entry.Title,
		entry.Author,
		entry.URI,
		entry.Identifier,
		entry.SourceName,
		entry.DurationMs,
		entry.RequestedBy,
		entry.Outcome,
		startedAt,
		entry.EndedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record play history for guild %d: %w", entry.GuildID, err)
	}
	return nil
}

// ListRecentByGuild returns up to limit entries for a guild, newest first
func (r *HistoryRepository) ListRecentByGuild(ctx context.Context, guildID int64, limit int) ([]*models.PlayHistoryEntry, error) {
	if limit <= 0 {
		return []*models.PlayHistoryEntry{}, nil
	}

	query := `
		SELECT id, guild_id, session_id, title, author, uri, identifier, source_name,
		       duration_ms, requested_by, outcome, started_at, ended_at
		FROM play_history
		WHERE guild_id = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	entries := make([]*models.PlayHistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating play history: %w", err)
	}
	return entries, nil
}

// CountBySession returns how many tracks of a session ended with outcome
func (r *HistoryRepository) CountBySession(ctx context.Context, sessionID string, outcome models.PlaybackOutcome) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM play_history WHERE session_id = $1 AND outcome = $2`,
		sessionID, outcome,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count play history for session %s: %w", sessionID, err)
	}
	return count, nil
}

func scanHistoryEntry(row pgx.Row) (*models.PlayHistoryEntry, error) {
	var entry models.PlayHistoryEntry
	var startedAt *time.Time
	err := row.Scan(
		&entry.ID,
		&entry.GuildID,
		&entry.SessionID,
		&entry.Title,
		&entry.Author,
		&entry.URI,
		&entry.Identifier,
		&entry.SourceName,
		&entry.DurationMs,
		&entry.RequestedBy,
		&entry.Outcome,
		&startedAt,
		&entry.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan play history entry: %w", err)
	}
	if startedAt != nil {
		entry.StartedAt = *startedAt
	}
	return &entry, nil
}
