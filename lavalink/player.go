package lavalink

import (
	"context"
	"sync"

	"jukebox/node"

	log "github.com/sirupsen/logrus"
)

// playerConn is one guild's player on the node. Events are queued and
// handed to the subscriber from a dedicated goroutine so a slow guild never
// blocks the websocket reader.
type playerConn struct {
	client  *Client
	guildID string

	mu         sync.Mutex
	handler    func(node.Event)
	voice      voiceState
	voiceReady chan struct{}
	voiceOnce  sync.Once

	events    chan node.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newPlayerConn(c *Client, guildID string) *playerConn {
	p := &playerConn{
		client:     c,
		guildID:    guildID,
		voiceReady: make(chan struct{}),
		events:     make(chan node.Event, playerEventsBuf),
		done:       make(chan struct{}),
	}
	go p.dispatch()
	return p
}

func (p *playerConn) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			p.mu.Lock()
			h := p.handler
			p.mu.Unlock()
			if h == nil {
				log.WithField("guildID", p.guildID).Debugf("Dropping %T, no subscriber", ev)
				continue
			}
			h(ev)
		}
	}
}

func (p *playerConn) deliver(ev node.Event) {
	select {
	case <-p.done:
	case p.events <- ev:
	}
}

func (p *playerConn) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *playerConn) Subscribe(handler func(node.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// PlayTrack also clears pause; the node keeps paused across tracks otherwise
func (p *playerConn) PlayTrack(ctx context.Context, encoded string) error {
	paused := false
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Track: &trackUpdate{Encoded: &encoded}, Paused: &paused})
}

func (p *playerConn) StopTrack(ctx context.Context) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Track: &trackUpdate{}})
}

func (p *playerConn) SetPaused(ctx context.Context, paused bool) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Paused: &paused})
}

func (p *playerConn) SetVolume(ctx context.Context, volume int) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Volume: &volume})
}

var _ node.Connection = (*playerConn)(nil)
