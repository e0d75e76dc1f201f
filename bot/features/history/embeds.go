package history

import (
	"fmt"
	"strings"
	"time"

	"jukebox/bot/common"
	"jukebox/models"

	"github.com/bwmarrin/discordgo"
)

// BuildHistoryEmbed lists recently played tracks, newest first. A non-nil
// session adds a field describing the player that is running now.
func BuildHistoryEmbed(entries []*models.PlayHistoryEntry, session *models.PlayerSession) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "📜 Recently played",
		Color:     common.ColorPrimary,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if session != nil && session.EndedAt == nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Current session",
			Value: fmt.Sprintf("In <#%d> since %s", session.VoiceChannelID, common.FormatDiscordTimestamp(session.StartedAt, "R")),
		})
	}

	if len(entries) == 0 {
		embed.Description = "Nothing has been played here yet."
		return embed
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		track := models.Track{Info: models.TrackInfo{Title: e.Title, Author: e.Author, URI: e.URI}}
		line := fmt.Sprintf("%s %s %s", outcomeIcon(e.Outcome), common.FormatTrackLink(track), common.FormatDiscordTimestamp(e.EndedAt, "R"))
		if e.RequestedBy != "" {
			line += " • " + common.EscapeMarkdown(e.RequestedBy)
		}
		lines = append(lines, line)
	}
	embed.Description = strings.Join(lines, "\n")
	return embed
}

func outcomeIcon(outcome models.PlaybackOutcome) string {
	switch outcome {
	case models.OutcomeFinished:
		return "✅"
	case models.OutcomeStopped:
		return "⏭️"
	case models.OutcomeFailed:
		return "⚠️"
	default:
		return "❔"
	}
}
