package bot

import (
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// VoiceMembers counts voice channel occupants from the session's state cache
type VoiceMembers struct {
	state *discordgo.State
}

func NewVoiceMembers(state *discordgo.State) *VoiceMembers {
	return &VoiceMembers{state: state}
}

// CountChannelMembers counts non-bot users in channelID other than exclude.
// A guild missing from the cache reports player.UnknownMemberCount.
func (v *VoiceMembers) CountChannelMembers(guildID, channelID, exclude string) int {
	guild, err := v.state.Guild(guildID)
	if err != nil {
		log.WithFields(log.Fields{
			"guildID": guildID,
			"error":   err,
		}).Warn("Guild missing from state cache")
		return player.UnknownMemberCount
	}

	v.state.RLock()
	occupants := make([]*discordgo.VoiceState, 0, len(guild.VoiceStates))
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != exclude {
			occupants = append(occupants, vs)
		}
	}
	v.state.RUnlock()

	count := 0
	for _, vs := range occupants {
		if v.isBot(guildID, vs) {
			continue
		}
		count++
	}
	return count
}

func (v *VoiceMembers) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	member, err := v.state.Member(guildID, vs.UserID)
	return err == nil && member.User != nil && member.User.Bot
}
