package history

import (
	"context"
	"strconv"

	"jukebox/bot/common"
	"jukebox/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	if i.GuildID == "" {
		common.RespondWithError(s, i, "History is only available inside a server.")
		return
	}

	guildID, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		log.Errorf("Error parsing guild ID %s: %v", i.GuildID, err)
		common.RespondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	count := defaultCount
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "count" {
			count = int(opt.IntValue())
		}
	}

	entries, err := f.historyService.RecentTracks(ctx, guildID, count)
	if err != nil {
		log.Errorf("Error loading history for guild %d: %v", guildID, err)
		common.RespondWithError(s, i, "Unable to load play history. Please try again.")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildHistoryEmbed(entries, f.liveSession(ctx, i.GuildID)), false); err != nil {
		log.Errorf("Error responding to history command: %v", err)
	}
}

// liveSession loads the session row of the guild's current player, if any
func (f *Feature) liveSession(ctx context.Context, guildID string) *models.PlayerSession {
	if f.registry == nil {
		return nil
	}
	d, ok := f.registry.Get(guildID)
	if !ok {
		return nil
	}
	session, err := f.historyService.Session(ctx, d.SessionID())
	if err != nil {
		log.WithFields(log.Fields{
			"guildID":   guildID,
			"sessionID": d.SessionID(),
			"error":     err,
		}).Warn("Failed to load current session")
		return nil
	}
	return session
}
