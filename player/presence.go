package player

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// VoiceStateChange is a user's voice channel after an update. ChannelID is
// empty when the user left voice entirely.
type VoiceStateChange struct {
	GuildID   string
	UserID    string
	ChannelID string
}

// PresenceMonitor watches voice membership and tears players down when the
// bot is disconnected or left alone in its channel.
type PresenceMonitor struct {
	registry     *Registry
	members      ChannelMembers
	notifier     Notifier
	botUserID    string
	aloneTimeout time.Duration

	mu     sync.Mutex
	timers map[string]*aloneTimer
}

type aloneTimer struct {
	timer      *time.Timer
	dispatcher *Dispatcher
}

// NewPresenceMonitor creates a monitor. aloneTimeout defaults to a minute.
func NewPresenceMonitor(registry *Registry, members ChannelMembers, notifier Notifier, botUserID string, aloneTimeout time.Duration) *PresenceMonitor {
	if aloneTimeout <= 0 {
		aloneTimeout = time.Minute
	}
	return &PresenceMonitor{
		registry:     registry,
		members:      members,
		notifier:     notifier,
		botUserID:    botUserID,
		aloneTimeout: aloneTimeout,
		timers:       make(map[string]*aloneTimer),
	}
}

// SetBotUserID sets the bot's own user ID once the gateway reports it
func (m *PresenceMonitor) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}

// HandleVoiceStateChange reacts to a single voice state update
func (m *PresenceMonitor) HandleVoiceStateChange(ctx context.Context, change VoiceStateChange) {
	d, ok := m.registry.Get(change.GuildID)
	if !ok {
		m.cancel(change.GuildID)
		return
	}

	m.mu.Lock()
	botID := m.botUserID
	m.mu.Unlock()

	if change.UserID == botID {
		if change.ChannelID == "" {
			log.WithField("guildID", change.GuildID).Info("Bot was disconnected from voice")
			m.cancel(change.GuildID)
			d.Destroy(ctx, ReasonDisconnected)
			return
		}
		if change.ChannelID != d.VoiceChannelID() {
			log.WithFields(log.Fields{
				"guildID":   change.GuildID,
				"channelID": change.ChannelID,
			}).Info("Bot was moved to another voice channel")
			d.SetVoiceChannel(change.ChannelID)
		}
	}

	// unknown occupancy leaves any running timer as it is
	switch count := m.members.CountChannelMembers(change.GuildID, d.VoiceChannelID(), botID); {
	case count == 0:
		m.arm(d)
	case count > 0:
		m.cancel(change.GuildID)
	}
}

// arm starts the alone timer for the guild unless one is already running
func (m *PresenceMonitor) arm(d *Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	guildID := d.GuildID()
	if existing, ok := m.timers[guildID]; ok && existing.dispatcher == d {
		return
	} else if ok {
		existing.timer.Stop()
	}

	log.WithFields(log.Fields{
		"guildID": guildID,
		"timeout": m.aloneTimeout,
	}).Info("Bot is alone in voice, starting leave timer")

	entry := &aloneTimer{dispatcher: d}
	entry.timer = time.AfterFunc(m.aloneTimeout, func() {
		m.expire(entry)
	})
	m.timers[guildID] = entry
}

func (m *PresenceMonitor) cancel(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.timers[guildID]; ok {
		entry.timer.Stop()
		delete(m.timers, guildID)
	}
}

func (m *PresenceMonitor) expire(entry *aloneTimer) {
	d := entry.dispatcher
	guildID := d.GuildID()

	m.mu.Lock()
	if current, ok := m.timers[guildID]; !ok || current != entry {
		m.mu.Unlock()
		return
	}
	delete(m.timers, guildID)
	botID := m.botUserID
	m.mu.Unlock()

	if live, ok := m.registry.Get(guildID); !ok || live != d {
		return
	}
	if m.members.CountChannelMembers(guildID, d.VoiceChannelID(), botID) != 0 {
		return
	}

	ctx := context.Background()
	if m.notifier != nil {
		m.notifier.Notify(ctx, d.TextChannelID(), Notification{Kind: NotifyAloneTimeout, GuildID: guildID})
	}
	d.Destroy(ctx, ReasonAlone)
}

// Pending reports whether an alone timer is armed for the guild
func (m *PresenceMonitor) Pending(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[guildID]
	return ok
}

// Stop cancels every armed timer
func (m *PresenceMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for guildID, entry := range m.timers {
		entry.timer.Stop()
		delete(m.timers, guildID)
	}
}
