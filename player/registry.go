package player

import (
	"context"
	"sync"
	"time"

	"jukebox/events"
	"jukebox/node"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Registry maps guilds to their live dispatcher
type Registry struct {
	node     node.Node
	notifier Notifier
	bus      events.Publisher
	opts     Options

	mu      sync.Mutex
	players map[string]*Dispatcher
}

// NewRegistry creates an empty registry. bus may be nil.
func NewRegistry(n node.Node, notifier Notifier, bus events.Publisher, opts Options) *Registry {
	return &Registry{
		node:     n,
		notifier: notifier,
		bus:      bus,
		opts:     opts,
		players:  make(map[string]*Dispatcher),
	}
}

// GetOrCreate returns the guild's live dispatcher, creating and connecting a
// new one if there is none. Concurrent callers for the same guild always get
// the same instance.
func (r *Registry) GetOrCreate(guildID, voiceChannelID, textChannelID string) *Dispatcher {
	r.mu.Lock()
	if d, ok := r.players[guildID]; ok && d.Exists() {
		r.mu.Unlock()
		return d
	}

	d := newDispatcher(guildID, uuid.NewString(), voiceChannelID, textChannelID, r.node, r.notifier, r.bus, r, r.opts)
	r.players[guildID] = d
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"guildID":   guildID,
		"channelID": voiceChannelID,
		"sessionID": d.sessionID,
	}).Info("Created player")

	if r.bus != nil {
		r.bus.Emit(context.Background(), events.PlayerCreatedEvent{
			SessionID:      d.sessionID,
			GuildID:        guildID,
			VoiceChannelID: voiceChannelID,
			TextChannelID:  textChannelID,
			CreatedAt:      time.Now(),
		})
	}

	go d.connect()
	return d
}

// Get returns the guild's dispatcher if it is still live
func (r *Registry) Get(guildID string) (*Dispatcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.players[guildID]
	if !ok || !d.Exists() {
		return nil, false
	}
	return d, true
}

// remove drops the guild's entry only if it still points at d
func (r *Registry) remove(guildID string, d *Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.players[guildID]; ok && current == d {
		delete(r.players, guildID)
	}
}

// Len returns the number of registered dispatchers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// DestroyAll tears down every dispatcher, used on shutdown
func (r *Registry) DestroyAll(ctx context.Context, reason DestroyReason) {
	r.mu.Lock()
	players := make([]*Dispatcher, 0, len(r.players))
	for _, d := range r.players {
		players = append(players, d)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, d := range players {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			d.Destroy(ctx, reason)
		}(d)
	}
	wg.Wait()
}
