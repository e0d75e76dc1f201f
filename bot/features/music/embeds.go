package music

import (
	"fmt"
	"strings"
	"time"

	"jukebox/bot/common"
	"jukebox/models"
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
)

// queuePageSize is how many upcoming tracks /queue lists
const queuePageSize = 10

// LoopLabel is the human name for a loop mode
func LoopLabel(mode models.LoopMode) string {
	switch mode {
	case models.LoopTrack:
		return "track"
	case models.LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// BuildQueuedEmbed confirms what /play added. position is the queue length after enqueueing.
func BuildQueuedEmbed(res *player.Resolution, position int, startsNow bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:     common.ColorSuccess,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if res.Playlist != nil && len(res.Tracks) > 1 {
		var total time.Duration
		for _, t := range res.Tracks {
			total += t.Duration()
		}
		embed.Title = "📃 Playlist queued"
		embed.Description = fmt.Sprintf("**%s**\n%d tracks • %s",
			common.EscapeMarkdown(res.Playlist.Name), len(res.Tracks), common.FormatDuration(total))
		return embed
	}

	track := res.Tracks[0]
	if startsNow {
		embed.Title = "🎵 Starting playback"
	} else {
		embed.Title = "➕ Added to queue"
	}
	embed.Description = common.FormatTrackLink(track)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Length", Value: common.FormatTrackLength(track), Inline: true},
	}
	if !startsNow {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Position", Value: fmt.Sprintf("#%d", position), Inline: true,
		})
	}
	if track.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.Info.ArtworkURL}
	}
	return embed
}

// BuildQueueEmbed lists the current track and the next few queued ones
func BuildQueueEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "🎶 Queue",
		Color:     common.ColorPrimary,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	var b strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&b, "**Now playing:** %s `[%s/%s]`\n\n",
			common.FormatTrackLink(*snap.Current),
			common.FormatDuration(snap.Position),
			common.FormatTrackLength(*snap.Current))
	}

	if len(snap.Queue) == 0 {
		b.WriteString("Nothing queued.")
	}

	var total time.Duration
	for idx, t := range snap.Queue {
		total += t.Duration()
		if idx >= queuePageSize {
			continue
		}
		fmt.Fprintf(&b, "`%d.` %s `%s`\n", idx+1, common.FormatTrackLink(t), common.FormatTrackLength(t))
	}
	if extra := len(snap.Queue) - queuePageSize; extra > 0 {
		fmt.Fprintf(&b, "…and %d more", extra)
	}

	embed.Description = strings.TrimSpace(b.String())
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%d queued • %s • loop: %s • volume: %d",
			len(snap.Queue), common.FormatDuration(total), LoopLabel(snap.Loop), snap.Volume),
	}
	return embed
}

// BuildNowPlayingEmbed describes the current track. snap.Current must be set.
func BuildNowPlayingEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	track := *snap.Current

	title := "▶️ Now Playing"
	if snap.Paused {
		title = "⏸️ Paused"
	}

	progress := "🔴 LIVE"
	if !track.Info.IsStream {
		progress = fmt.Sprintf("%s `%s / %s`",
			common.ProgressBar(snap.Position, track.Duration(), 16),
			common.FormatDuration(snap.Position),
			common.FormatDuration(track.Duration()))
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: common.FormatTrackLink(track) + "\n\n" + progress,
		Color:       common.ColorPrimary,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Loop", Value: LoopLabel(snap.Loop), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d", snap.Volume), Inline: true},
			{Name: "Up next", Value: upNext(snap.Queue), Inline: true},
		},
	}
	if track.Requester.ID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + track.Requester.Username}
	}
	if track.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.Info.ArtworkURL}
	}
	return embed
}

func upNext(queue []models.Track) string {
	if len(queue) == 0 {
		return "—"
	}
	return common.Truncate(queue[0].DisplayName(), 40)
}
