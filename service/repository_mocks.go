package service

import (
	"context"
	"time"

	"jukebox/models"

	"github.com/stretchr/testify/mock"
)

// MockHistoryRepository is a mock implementation of HistoryRepository
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Record(ctx context.Context, entry *models.PlayHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListRecentByGuild(ctx context.Context, guildID int64, limit int) ([]*models.PlayHistoryEntry, error) {
	args := m.Called(ctx, guildID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlayHistoryEntry), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.PlayerSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.PlayerSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlayerSession), args.Error(1)
}

func (m *MockSessionRepository) Close(ctx context.Context, id string, guildID int64, reason string, tracksPlayed int, endedAt time.Time) error {
	args := m.Called(ctx, id, guildID, reason, tracksPlayed, endedAt)
	return args.Error(0)
}
