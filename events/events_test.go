package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"jukebox/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	received := make(chan TrackStartedEvent, 1)
	bus.Subscribe(EventTypeTrackStarted, func(ctx context.Context, event Event) {
		if e, ok := event.(TrackStartedEvent); ok {
			received <- e
		} else {
			t.Errorf("Expected TrackStartedEvent, got %T", event)
		}
	})

	sent := TrackStartedEvent{
		SessionID: "session-1",
		GuildID:   "123",
		Track:     models.Track{Encoded: "abc", Info: models.TrackInfo{Title: "Song"}},
		StartedAt: time.Now(),
	}
	bus.Emit(context.Background(), sent)

	select {
	case got := <-received:
		assert.Equal(t, sent.GuildID, got.GuildID)
		assert.Equal(t, sent.Track.Encoded, got.Track.Encoded)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []EventType
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe(EventTypePlayerDestroyed, func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		got = append(got, event.Type())
		mu.Unlock()
	})

	bus.Emit(context.Background(), PlayerCreatedEvent{GuildID: "1"})
	bus.Emit(context.Background(), PlayerDestroyedEvent{GuildID: "1", Reason: "stop"})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventTypePlayerDestroyed}, got)
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	bus.Subscribe(EventTypeTrackEnded, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeTrackEnded, func(ctx context.Context, event Event) {
		close(done)
	})

	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), TrackEndedEvent{GuildID: "1", Outcome: models.OutcomeFinished})
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(4)
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		wg.Done()
	})

	ctx := context.Background()
	bus.Emit(ctx, PlayerCreatedEvent{})
	bus.Emit(ctx, TrackStartedEvent{})
	bus.Emit(ctx, TrackEndedEvent{})
	bus.Emit(ctx, PlayerDestroyedEvent{})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("not every event type was delivered")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Emit(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestBus_WaitBlocksUntilHandlersReturn(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	done := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventTypeTrackEnded, func(ctx context.Context, event Event) {
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			done++
			mu.Unlock()
		})
	}

	bus.Emit(context.Background(), TrackEndedEvent{GuildID: "123"})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, done)
}

func TestBatch_FlushPreservesOrder(t *testing.T) {
	rec := &recordingPublisher{}
	batch := NewBatch(rec)

	batch.Publish(TrackEndedEvent{GuildID: "1"})
	batch.Publish(TrackStartedEvent{GuildID: "1"})
	require.Equal(t, 2, batch.Len())
	assert.Empty(t, rec.events, "nothing is emitted before Flush")

	batch.Flush(context.Background())

	require.Len(t, rec.events, 2)
	assert.Equal(t, EventTypeTrackEnded, rec.events[0].Type())
	assert.Equal(t, EventTypeTrackStarted, rec.events[1].Type())
	assert.Equal(t, 0, batch.Len())
}

func TestBatch_NilPublisher(t *testing.T) {
	batch := NewBatch(nil)
	batch.Publish(PlayerCreatedEvent{})
	assert.NotPanics(t, func() { batch.Flush(context.Background()) })
	assert.Equal(t, 0, batch.Len())
}
