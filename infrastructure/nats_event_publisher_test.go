package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"jukebox/events"
	"jukebox/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
	notify   chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{notify: make(chan struct{}, 16)}
}

func (r *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.messages = append(r.messages, published{subject: subject, data: data})
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recordingPublisher) last() published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[len(r.messages)-1]
}

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event   events.Event
		subject string
	}{
		{events.PlayerCreatedEvent{}, "jukebox.player.player_created"},
		{events.TrackStartedEvent{}, "jukebox.player.track_started"},
		{events.TrackEndedEvent{}, "jukebox.player.track_ended"},
		{events.PlayerDestroyedEvent{}, "jukebox.player.player_destroyed"},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.subject, mapper.MapEventToSubject(tt.event))
			assert.Equal(t, tt.event.Type(), mapper.MapSubjectToEventType(tt.subject))
		})
	}

	assert.Equal(t, []string{"jukebox.player.*"}, mapper.GetAllSubjects())
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	client := newRecordingPublisher()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	var publishedType events.EventType
	publisher.OnPublished(func(eventType events.EventType) {
		publishedType = eventType
	})

	event := events.TrackEndedEvent{
		SessionID: "sess-1",
		GuildID:   "111",
		Track: models.Track{
			Encoded: "enc",
			Info:    models.TrackInfo{Title: "Song", Author: "Band"},
		},
		Outcome: models.OutcomeFinished,
		EndedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, publisher.Publish(context.Background(), event))

	msg := client.last()
	assert.Equal(t, "jukebox.player.track_ended", msg.subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.Equal(t, "track_ended", envelope.EventType)
	assert.Equal(t, "jukebox", envelope.SourceService)
	_, err := uuid.Parse(envelope.EventID)
	assert.NoError(t, err)
	assert.False(t, envelope.Timestamp.IsZero())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "sess-1", payload["sessionId"])
	assert.Equal(t, "111", payload["guildId"])
	assert.Equal(t, "finished", payload["outcome"])
	assert.Equal(t, "Song", payload["track"].(map[string]any)["info"].(map[string]any)["title"])

	assert.Equal(t, events.EventTypeTrackEnded, publishedType)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	client := newRecordingPublisher()
	client.err = errors.New("nats: no responders available for request")
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	called := false
	publisher.OnPublished(func(events.EventType) { called = true })

	err := publisher.Publish(context.Background(), events.PlayerDestroyedEvent{SessionID: "s"})

	assert.ErrorContains(t, err, "failed to publish event to NATS")
	assert.False(t, called)
}

func TestNATSEventPublisher_RegisterHandlers(t *testing.T) {
	client := newRecordingPublisher()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())
	bus := events.NewBus()
	publisher.RegisterHandlers(bus)

	bus.Emit(context.Background(), events.PlayerCreatedEvent{SessionID: "sess-9", GuildID: "1"})

	select {
	case <-client.notify:
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded to NATS")
	}
	assert.Equal(t, "jukebox.player.player_created", client.last().subject)
}

func TestEventEnvelope_UniqueIDs(t *testing.T) {
	a, err := NewEventEnvelope(events.TrackStartedEvent{SessionID: "s"})
	require.NoError(t, err)
	b, err := NewEventEnvelope(events.TrackStartedEvent{SessionID: "s"})
	require.NoError(t, err)
	assert.NotEqual(t, a.EventID, b.EventID)
}
