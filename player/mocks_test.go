package player

import (
	"context"
	"sync"

	"jukebox/models"
	"jukebox/node"

	"github.com/stretchr/testify/mock"
)

// MockNode is a mock implementation of node.Node
type MockNode struct {
	mock.Mock
}

func (m *MockNode) Join(ctx context.Context, guildID, channelID string) (node.Connection, error) {
	args := m.Called(ctx, guildID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(node.Connection), args.Error(1)
}

func (m *MockNode) Leave(ctx context.Context, guildID string) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

func (m *MockNode) Search(ctx context.Context, query string) (*models.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SearchResult), args.Error(1)
}

// MockConnection is a mock implementation of node.Connection. Subscribe is
// recorded directly so tests can push events through emit.
type MockConnection struct {
	mock.Mock

	mu      sync.Mutex
	handler func(node.Event)
}

func (m *MockConnection) PlayTrack(ctx context.Context, encoded string) error {
	args := m.Called(ctx, encoded)
	return args.Error(0)
}

func (m *MockConnection) StopTrack(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConnection) SetPaused(ctx context.Context, paused bool) error {
	args := m.Called(ctx, paused)
	return args.Error(0)
}

func (m *MockConnection) SetVolume(ctx context.Context, volume int) error {
	args := m.Called(ctx, volume)
	return args.Error(0)
}

func (m *MockConnection) Subscribe(handler func(node.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *MockConnection) emit(ev node.Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

type sentNotification struct {
	channelID string
	n         Notification
}

// recordingNotifier keeps every notification it is asked to send
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, textChannelID string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{channelID: textChannelID, n: n})
}

func (r *recordingNotifier) count(kind NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, s := range r.sent {
		if s.n.Kind == kind {
			total++
		}
	}
	return total
}

func (r *recordingNotifier) kinds() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]NotificationKind, len(r.sent))
	for i, s := range r.sent {
		kinds[i] = s.n.Kind
	}
	return kinds
}

// fakeMembers reports configurable channel occupancy
type fakeMembers struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{counts: make(map[string]int)}
}

func (f *fakeMembers) set(channelID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[channelID] = n
}

func (f *fakeMembers) CountChannelMembers(guildID, channelID, exclude string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[channelID]
}
