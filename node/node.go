// Package node defines the contract between the playback dispatcher and the
// external audio backend that decodes and streams tracks into voice channels.
package node

import (
	"context"

	"jukebox/models"
)

// Node joins voice channels and resolves queries into playable tracks
type Node interface {
	// Join connects the bot to a voice channel and returns a handle for
	// controlling playback in that guild. It blocks until the backend has
	// a usable voice session or ctx is done.
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
	// Leave disconnects from the guild's voice channel and discards the backend player
	Leave(ctx context.Context, guildID string) error
	// Search resolves a URL or a platform-prefixed query
	Search(ctx context.Context, query string) (*models.SearchResult, error)
}

// Connection controls a single guild's backend player
type Connection interface {
	// PlayTrack replaces the current track and starts it unpaused
	PlayTrack(ctx context.Context, encoded string) error
	StopTrack(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	SetVolume(ctx context.Context, volume int) error
	// Subscribe registers the handler that receives this guild's events.
	// Events are delivered one at a time in the order the backend emitted them.
	Subscribe(handler func(Event))
}
