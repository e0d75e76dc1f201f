package player

import (
	"context"

	"jukebox/models"
)

// NotificationKind identifies a user-facing playback message
type NotificationKind string

const (
	NotifyNowPlaying   NotificationKind = "now_playing"
	NotifyTrackSkipped NotificationKind = "track_skipped"
	NotifyAloneTimeout NotificationKind = "alone_timeout"
	NotifyDisconnected NotificationKind = "disconnected"
)

// Notification is a presentation-free description of something the guild should hear about
type Notification struct {
	Kind    NotificationKind
	GuildID string
	Track   *models.Track
	// Reason is set for skips and disconnects
	Reason string
}

// Notifier delivers notifications to a guild's text channel.
// Implementations must not call back into the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, textChannelID string, n Notification)
}

// UnknownMemberCount is reported when channel occupancy is not cached
const UnknownMemberCount = -1

// ChannelMembers reports voice channel occupancy
type ChannelMembers interface {
	// CountChannelMembers returns how many users other than exclude are in the
	// channel, or UnknownMemberCount when occupancy cannot be determined
	CountChannelMembers(guildID, channelID, exclude string) int
}
