package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jukebox/bot/common"
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	notifyQueueSize = 128
	notifyBurst     = 3
)

// embedSender is the part of *discordgo.Session the notifier uses
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type outboundEmbed struct {
	channelID string
	guildID   string
	embed     *discordgo.MessageEmbed
}

// ChannelNotifier posts player notifications to text channels. Sends happen
// on a single worker, rate limited per channel; a full queue drops messages.
type ChannelNotifier struct {
	sender embedSender
	limit  rate.Limit

	mu       sync.Mutex
	closed   bool
	limiters map[string]*rate.Limiter

	queue  chan outboundEmbed
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannelNotifier starts the send worker. perSecond <= 0 disables limiting.
func NewChannelNotifier(sender embedSender, perSecond float64) *ChannelNotifier {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &ChannelNotifier{
		sender:   sender,
		limit:    limit,
		limiters: make(map[string]*rate.Limiter),
		queue:    make(chan outboundEmbed, notifyQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues a notification. It never blocks and never reports errors.
func (n *ChannelNotifier) Notify(ctx context.Context, textChannelID string, note player.Notification) {
	if textChannelID == "" {
		return
	}
	embed := BuildNotificationEmbed(note)
	if embed == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	select {
	case n.queue <- outboundEmbed{channelID: textChannelID, guildID: note.GuildID, embed: embed}:
	default:
		log.WithFields(log.Fields{
			"guildID":   note.GuildID,
			"channelID": textChannelID,
			"kind":      note.Kind,
		}).Warn("Notification queue full, dropping message")
	}
}

func (n *ChannelNotifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.limiter(msg.channelID).Wait(n.ctx); err != nil {
			return
		}
		if _, err := n.sender.ChannelMessageSendEmbed(msg.channelID, msg.embed); err != nil {
			log.WithFields(log.Fields{
				"guildID":   msg.guildID,
				"channelID": msg.channelID,
				"error":     err,
			}).Warn("Failed to send notification")
		}
	}
}

func (n *ChannelNotifier) limiter(channelID string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(n.limit, notifyBurst)
		n.limiters[channelID] = l
	}
	return l
}

// Close stops accepting notifications and waits for queued ones to be sent
// until ctx expires.
func (n *ChannelNotifier) Close(ctx context.Context) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-ctx.Done():
		log.Warn("Timed out flushing notifications")
	}
	n.cancel()
	<-n.done
}

// BuildNotificationEmbed renders a notification, or nil when the listener
// already got feedback some other way.
func BuildNotificationEmbed(note player.Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Timestamp: time.Now().Format(time.RFC3339),
	}

	switch note.Kind {
	case player.NotifyNowPlaying:
		if note.Track == nil {
			return nil
		}
		embed.Title = "🎵 Now playing"
		embed.Color = common.ColorPrimary
		embed.Description = fmt.Sprintf("%s `%s`", common.FormatTrackLink(*note.Track), common.FormatTrackLength(*note.Track))
		if note.Track.Requester.Username != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + note.Track.Requester.Username}
		}
		if note.Track.Info.ArtworkURL != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: note.Track.Info.ArtworkURL}
		}

	case player.NotifyTrackSkipped:
		embed.Title = "⚠️ Skipped a track"
		embed.Color = common.ColorWarning
		if note.Track != nil {
			embed.Description = common.FormatTrackLink(*note.Track)
		}
		if note.Reason != "" {
			embed.Description += "\n" + common.EscapeMarkdown(note.Reason)
		}

	case player.NotifyAloneTimeout:
		embed.Title = "👋 Leaving"
		embed.Color = common.ColorMuted
		embed.Description = "Everyone left the voice channel, so I did too."

	case player.NotifyDisconnected:
		text, ok := disconnectText(player.DestroyReason(note.Reason))
		if !ok {
			return nil
		}
		embed.Title = "⏹️ Player stopped"
		embed.Color = common.ColorMuted
		embed.Description = text

	default:
		return nil
	}
	return embed
}

// disconnectText is false for reasons already announced elsewhere
func disconnectText(reason player.DestroyReason) (string, bool) {
	switch reason {
	case player.ReasonStopped, player.ReasonAlone:
		return "", false
	case player.ReasonQueueExhausted:
		return "The queue finished.", true
	case player.ReasonInitFailure:
		return "Couldn't connect to the voice channel.", true
	case player.ReasonPlaybackFailure:
		return "Playback failed and nothing else was queued.", true
	case player.ReasonConnectionClosed:
		return "The voice connection was lost.", true
	case player.ReasonDisconnected:
		return "I was disconnected from the voice channel.", true
	case player.ReasonShutdown:
		return "The bot is restarting.", true
	default:
		return "Playback ended.", true
	}
}
