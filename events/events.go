package events

import (
	"context"
	"sync"
	"time"

	"jukebox/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePlayerCreated   EventType = "player_created"
	EventTypeTrackStarted    EventType = "track_started"
	EventTypeTrackEnded      EventType = "track_ended"
	EventTypePlayerDestroyed EventType = "player_destroyed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PlayerCreatedEvent is emitted when a guild gets a new dispatcher
type PlayerCreatedEvent struct {
	SessionID      string    `json:"sessionId"`
	GuildID        string    `json:"guildId"`
	VoiceChannelID string    `json:"voiceChannelId"`
	TextChannelID  string    `json:"textChannelId"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e PlayerCreatedEvent) Type() EventType {
	return EventTypePlayerCreated
}

// TrackStartedEvent is emitted when the node confirms a track started streaming
type TrackStartedEvent struct {
	SessionID string       `json:"sessionId"`
	GuildID   string       `json:"guildId"`
	Track     models.Track `json:"track"`
	StartedAt time.Time    `json:"startedAt"`
}

func (e TrackStartedEvent) Type() EventType {
	return EventTypeTrackStarted
}

// TrackEndedEvent is emitted whenever a track leaves the player.
// StartedAt is zero for tracks that never started.
type TrackEndedEvent struct {
	SessionID string                 `json:"sessionId"`
	GuildID   string                 `json:"guildId"`
	Track     models.Track           `json:"track"`
	Outcome   models.PlaybackOutcome `json:"outcome"`
	StartedAt time.Time              `json:"startedAt"`
	EndedAt   time.Time              `json:"endedAt"`
}

func (e TrackEndedEvent) Type() EventType {
	return EventTypeTrackEnded
}

// PlayerDestroyedEvent is emitted once when a dispatcher is torn down
type PlayerDestroyedEvent struct {
	SessionID    string    `json:"sessionId"`
	GuildID      string    `json:"guildId"`
	Reason       string    `json:"reason"`
	TracksPlayed int       `json:"tracksPlayed"`
	DestroyedAt  time.Time `json:"destroyedAt"`
}

func (e PlayerDestroyedEvent) Type() EventType {
	return EventTypePlayerDestroyed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Publisher is implemented by anything that can fan an event out to subscribers
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	inflight sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds the handler to every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range []EventType{EventTypePlayerCreated, EventTypeTrackStarted, EventTypeTrackEnded, EventTypePlayerDestroyed} {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never stalls playback
	b.inflight.Add(len(handlers))
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Wait blocks until every handler started by Emit has returned
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// Batch holds events raised while a player's state lock is held.
// Flush hands them to the real bus once the state change is committed.
type Batch struct {
	real    Publisher
	pending []Event
}

func NewBatch(real Publisher) *Batch {
	return &Batch{real: real}
}

func (b *Batch) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Len returns the number of events waiting to be flushed
func (b *Batch) Len() int {
	return len(b.pending)
}

// Flush emits pending events in order and clears the batch
func (b *Batch) Flush(ctx context.Context) {
	if b.real == nil {
		b.pending = nil
		return
	}
	for _, ev := range b.pending {
		b.real.Emit(ctx, ev)
	}
	b.pending = nil
}
