package music

import (
	"time"

	"jukebox/bot/common"
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
)

// SearchRecorder receives one sample per /play lookup
type SearchRecorder interface {
	RecordSearch(platform, result string, duration time.Duration)
}

// Feature handles the playback slash commands
type Feature struct {
	registry *player.Registry
	resolver *player.Resolver
	cards    *CardGenerator
	searches SearchRecorder
}

// NewFeature creates the music feature. searches may be nil.
func NewFeature(registry *player.Registry, resolver *player.Resolver, cards *CardGenerator, searches SearchRecorder) *Feature {
	return &Feature{
		registry: registry,
		resolver: resolver,
		cards:    cards,
		searches: searches,
	}
}

// HandleCommand routes a music slash command
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		common.RespondWithError(s, i, "Music commands only work inside a server.")
		return
	}

	switch i.ApplicationCommandData().Name {
	case "play":
		f.handlePlay(s, i)
	case "skip":
		f.handleSkip(s, i)
	case "pause":
		f.handlePause(s, i, true)
	case "resume":
		f.handlePause(s, i, false)
	case "stop":
		f.handleStop(s, i)
	case "loop":
		f.handleLoop(s, i)
	case "shuffle":
		f.handleShuffle(s, i)
	case "clear":
		f.handleClear(s, i)
	case "queue":
		f.handleQueue(s, i)
	case "nowplaying":
		f.handleNowPlaying(s, i)
	case "volume":
		f.handleVolume(s, i)
	default:
		common.RespondWithError(s, i, "Unknown command")
	}
}

// Handles reports whether name is one of this feature's commands
func Handles(name string) bool {
	switch name {
	case "play", "skip", "pause", "resume", "stop", "loop", "shuffle", "clear", "queue", "nowplaying", "volume":
		return true
	}
	return false
}
