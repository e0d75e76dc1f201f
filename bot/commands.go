package bot

import (
	"fmt"

	"jukebox/player"
	"jukebox/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// commandDefinitions returns every slash command the bot serves
func commandDefinitions() []*discordgo.ApplicationCommand {
	guildOnly := false
	minVolume := 0.0
	minCount := 1.0

	sourceChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(player.Platforms()))
	for _, name := range player.Platforms() {
		sourceChoices = append(sourceChoices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:         "play",
			Description:  "Play a song or playlist from a URL or search",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL, search terms, or \"Artist - Title\"",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "source",
					Description: "Where to search (defaults to the server setting)",
					Required:    false,
					Choices:     sourceChoices,
				},
			},
		},
		{
			Name:         "skip",
			Description:  "Skip the current track",
			DMPermission: &guildOnly,
		},
		{
			Name:         "pause",
			Description:  "Pause playback",
			DMPermission: &guildOnly,
		},
		{
			Name:         "resume",
			Description:  "Resume playback",
			DMPermission: &guildOnly,
		},
		{
			Name:         "stop",
			Description:  "Stop playback and leave the voice channel",
			DMPermission: &guildOnly,
		},
		{
			Name:         "loop",
			Description:  "Repeat the current track or the whole queue",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Loop mode",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "off", Value: "off"},
						{Name: "track", Value: "track"},
						{Name: "queue", Value: "queue"},
					},
				},
			},
		},
		{
			Name:         "shuffle",
			Description:  "Shuffle the queue",
			DMPermission: &guildOnly,
		},
		{
			Name:         "clear",
			Description:  "Remove every queued track",
			DMPermission: &guildOnly,
		},
		{
			Name:         "queue",
			Description:  "Show the queue",
			DMPermission: &guildOnly,
		},
		{
			Name:         "nowplaying",
			Description:  "Show the current track",
			DMPermission: &guildOnly,
		},
		{
			Name:         "volume",
			Description:  "Show or change the volume",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: fmt.Sprintf("Volume from 0 to %d (100 is normal)", player.MaxVolume),
					Required:    false,
					MinValue:    &minVolume,
					MaxValue:    player.MaxVolume,
				},
			},
		},
		{
			Name:         "history",
			Description:  "Show recently played tracks",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many tracks to show",
					Required:    false,
					MinValue:    &minCount,
					MaxValue:    service.MaxHistoryPage,
				},
			},
		},
	}
}

// registerCommands replaces the application's commands with ours. An empty
// guild ID registers them globally.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, commands)
	if err != nil {
		return fmt.Errorf("cannot register commands: %w", err)
	}

	log.WithFields(log.Fields{
		"count":   len(commands),
		"guildID": b.config.GuildID,
	}).Info("Registered slash commands")
	return nil
}
