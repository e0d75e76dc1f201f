package repository

import (
	"context"
	"testing"
	"time"

	"jukebox/models"
	"jukebox/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewHistoryRepository(testDB.DB)
	ctx := context.Background()

	t.Run("assigns id", func(t *testing.T) {
		entry := testutil.CreateTestHistoryEntry(111, testutil.CreateTestSession(111).ID, "first")
		require.NoError(t, repo.Record(ctx, entry))
		assert.NotZero(t, entry.ID)
	})

	t.Run("round trip", func(t *testing.T) {
		entry := testutil.CreateTestHistoryEntry(222, testutil.CreateTestSession(222).ID, "round")
		require.NoError(t, repo.Record(ctx, entry))

		entries, err := repo.ListRecentByGuild(ctx, 222, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		got := entries[0]
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, entry.SessionID, got.SessionID)
		assert.Equal(t, "round", got.Title)
		assert.Equal(t, entry.Author, got.Author)
		assert.Equal(t, entry.DurationMs, got.DurationMs)
		assert.Equal(t, models.OutcomeFinished, got.Outcome)
		assert.True(t, entry.StartedAt.Equal(got.StartedAt))
		assert.True(t, entry.EndedAt.Equal(got.EndedAt))
	})

	t.Run("unknown start time", func(t *testing.T) {
		entry := testutil.CreateTestHistoryEntry(333, testutil.CreateTestSession(333).ID, "nostart")
		entry.StartedAt = time.Time{}
		require.NoError(t, repo.Record(ctx, entry))

		entries, err := repo.ListRecentByGuild(ctx, 333, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].StartedAt.IsZero())
	})

	t.Run("rejects unknown outcome", func(t *testing.T) {
		entry := testutil.CreateTestHistoryEntry(444, testutil.CreateTestSession(444).ID, "bad")
		entry.Outcome = "exploded"
		assert.Error(t, repo.Record(ctx, entry))
	})
}

func TestHistoryRepository_ListRecentByGuild(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewHistoryRepository(testDB.DB)
	ctx := context.Background()

	session := testutil.CreateTestSession(555)
	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"a", "b", "c", "d"} {
		entry := testutil.CreateTestHistoryEntryWithOutcome(555, session.ID, title, models.OutcomeFinished, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Record(ctx, entry))
	}
	other := testutil.CreateTestHistoryEntry(666, session.ID, "elsewhere")
	require.NoError(t, repo.Record(ctx, other))

	t.Run("newest first with limit", func(t *testing.T) {
		entries, err := repo.ListRecentByGuild(ctx, 555, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "d", entries[0].Title)
		assert.Equal(t, "c", entries[1].Title)
		assert.Equal(t, "b", entries[2].Title)
	})

	t.Run("scoped to guild", func(t *testing.T) {
		entries, err := repo.ListRecentByGuild(ctx, 666, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "elsewhere", entries[0].Title)
	})

	t.Run("non positive limit", func(t *testing.T) {
		entries, err := repo.ListRecentByGuild(ctx, 555, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("count by session", func(t *testing.T) {
		count, err := repo.CountBySession(ctx, session.ID, models.OutcomeFinished)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})
}
