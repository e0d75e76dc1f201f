package lavalink

import (
	"context"
	"errors"
	"fmt"

	"jukebox/node"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Join asks Discord to move the bot into the channel and waits until both
// voice updates have been forwarded to the node.
func (c *Client) Join(ctx context.Context, guildID, channelID string) (node.Connection, error) {
	if err := c.WaitReady(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	p, ok := c.players[guildID]
	if !ok {
		p = newPlayerConn(c, guildID)
		c.players[guildID] = p
	}
	c.mu.Unlock()

	if err := c.gateway.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		c.dropPlayer(guildID, p)
		return nil, fmt.Errorf("failed to request voice join: %w", err)
	}

	select {
	case <-p.voiceReady:
		return p, nil
	case <-ctx.Done():
		c.dropPlayer(guildID, p)
		return nil, fmt.Errorf("voice join timed out: %w", ctx.Err())
	}
}

// Leave destroys the node player and disconnects from the guild's voice channel
func (c *Client) Leave(ctx context.Context, guildID string) error {
	c.mu.Lock()
	p, ok := c.players[guildID]
	delete(c.players, guildID)
	c.mu.Unlock()

	if ok {
		p.close()
	}

	var errs []error
	if err := c.destroyPlayer(ctx, guildID); err != nil && !errors.Is(err, ErrNodeNotReady) {
		errs = append(errs, fmt.Errorf("failed to destroy node player: %w", err))
	}
	if err := c.gateway.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		errs = append(errs, fmt.Errorf("failed to leave voice channel: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Client) dropPlayer(guildID string, p *playerConn) {
	c.mu.Lock()
	if current, ok := c.players[guildID]; ok && current == p {
		delete(c.players, guildID)
	}
	c.mu.Unlock()
	p.close()
}

// HandleVoiceStateUpdate records the bot's voice session id
func (c *Client) HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	c.mu.RLock()
	userID := c.userID
	p := c.players[vs.GuildID]
	c.mu.RUnlock()

	if vs.UserID != userID || p == nil || vs.ChannelID == "" {
		return
	}

	p.mu.Lock()
	p.voice.SessionID = vs.SessionID
	p.mu.Unlock()
	c.forwardVoice(p)
}

// HandleVoiceServerUpdate records the voice server token and endpoint
func (c *Client) HandleVoiceServerUpdate(s *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
	c.mu.RLock()
	p := c.players[vs.GuildID]
	c.mu.RUnlock()

	if p == nil {
		return
	}

	p.mu.Lock()
	p.voice.Token = vs.Token
	p.voice.Endpoint = vs.Endpoint
	p.mu.Unlock()
	c.forwardVoice(p)
}

// forwardVoice sends the voice session to the node once all three parts are known
func (c *Client) forwardVoice(p *playerConn) {
	p.mu.Lock()
	voice := p.voice
	p.mu.Unlock()

	if voice.SessionID == "" || voice.Token == "" || voice.Endpoint == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
	defer cancel()
	if err := c.updatePlayer(ctx, p.guildID, playerUpdate{Voice: &voice}); err != nil {
		log.WithFields(log.Fields{
			"guildID": p.guildID,
			"error":   err,
		}).Error("Failed to forward voice state to Lavalink")
		return
	}
	p.voiceOnce.Do(func() { close(p.voiceReady) })
}
