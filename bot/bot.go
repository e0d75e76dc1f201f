package bot

import (
	"context"
	"fmt"

	"jukebox/bot/common"
	"jukebox/bot/features/history"
	"jukebox/bot/features/music"
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token string
	// GuildID scopes command registration to one guild; empty means global
	GuildID string
}

// VoiceEvents receives Discord voice updates for the audio node
type VoiceEvents interface {
	HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate)
	HandleVoiceServerUpdate(s *discordgo.Session, vs *discordgo.VoiceServerUpdate)
}

type Bot struct {
	config   Config
	session  *discordgo.Session
	presence *player.PresenceMonitor
	voice    VoiceEvents

	musicFeature   *music.Feature
	historyFeature *history.Feature
}

// NewSession creates the Discord session with the intents the bot needs.
// It is not opened until New.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.StateEnabled = true
	dg.State.TrackVoice = true
	return dg, nil
}

// New wires handlers onto session, opens it and registers slash commands
func New(config Config, session *discordgo.Session, presence *player.PresenceMonitor, voice VoiceEvents, musicFeature *music.Feature, historyFeature *history.Feature) (*Bot, error) {
	bot := &Bot{
		config:         config,
		session:        session,
		presence:       presence,
		voice:          voice,
		musicFeature:   musicFeature,
		historyFeature: historyFeature,
	}

	session.AddHandler(bot.handleReady)
	session.AddHandler(bot.handleCommands)
	session.AddHandler(bot.handleVoiceStateUpdate)
	session.AddHandler(bot.handleVoiceServerUpdate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	// Ready has been received once Open returns
	presence.SetBotUserID(session.State.User.ID)

	if err := bot.registerCommands(); err != nil {
		session.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// UserID is the bot's own Discord user ID
func (b *Bot) UserID() string {
	return b.session.State.User.ID
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.presence.SetBotUserID(r.User.ID)
	log.WithFields(log.Fields{
		"user":   r.User.Username,
		"guilds": len(r.Guilds),
	}).Info("Connected to Discord")
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	switch {
	case music.Handles(name):
		b.musicFeature.HandleCommand(s, i)
	case name == "history":
		b.historyFeature.HandleCommand(s, i)
	default:
		log.WithField("command", name).Warn("Unknown command")
		common.RespondWithError(s, i, "Unknown command")
	}
}

func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	b.voice.HandleVoiceStateUpdate(s, vs)
	b.presence.HandleVoiceStateChange(context.Background(), player.VoiceStateChange{
		GuildID:   vs.GuildID,
		UserID:    vs.UserID,
		ChannelID: vs.ChannelID,
	})
}

func (b *Bot) handleVoiceServerUpdate(s *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
	b.voice.HandleVoiceServerUpdate(s, vs)
}
