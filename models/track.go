package models

import (
	"fmt"
	"strings"
	"time"
)

// UserRef identifies the Discord user who requested a track
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TrackInfo is the display metadata reported by the audio node
type TrackInfo struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	URI        string `json:"uri"`
	DurationMs int64  `json:"durationMs"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	SourceName string `json:"sourceName"`
	Identifier string `json:"identifier"`
	IsStream   bool   `json:"isStream"`
}

// Track is a playable item. Encoded is the opaque payload the node plays
type Track struct {
	Encoded   string    `json:"encoded"`
	Info      TrackInfo `json:"info"`
	Requester UserRef   `json:"requester"`
}

// Valid reports whether the track carries a playable payload
func (t Track) Valid() bool {
	return t.Encoded != ""
}

// SameAs reports whether two tracks refer to the same song for history purposes
func (t Track) SameAs(other Track) bool {
	return t.Info.Identifier == other.Info.Identifier && t.Info.Title == other.Info.Title
}

// Duration returns the track length
func (t Track) Duration() time.Duration {
	return time.Duration(t.Info.DurationMs) * time.Millisecond
}

// DisplayName formats the track as "Author - Title"
func (t Track) DisplayName() string {
	if t.Info.Author == "" {
		return t.Info.Title
	}
	return fmt.Sprintf("%s - %s", t.Info.Author, t.Info.Title)
}

// LoopMode controls what happens to a track after it finishes normally
type LoopMode string

const (
	LoopNone  LoopMode = "none"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// Valid reports whether the loop mode is one of the known modes
func (m LoopMode) Valid() bool {
	switch m {
	case LoopNone, LoopTrack, LoopQueue:
		return true
	}
	return false
}

// ParseLoopMode converts user input into a LoopMode
func ParseLoopMode(s string) (LoopMode, error) {
	mode := LoopMode(strings.ToLower(strings.TrimSpace(s)))
	if mode == "off" || mode == "" {
		mode = LoopNone
	}
	if !mode.Valid() {
		return "", fmt.Errorf("unknown loop mode %q", s)
	}
	return mode, nil
}
