package node

import (
	"fmt"
	"time"
)

// EndReason is why the backend stopped a track
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// Failed reports whether the reason signals a playback failure rather than a normal end
func (r EndReason) Failed() bool {
	return r == EndReasonLoadFailed || r == EndReasonCleanup
}

// Event is anything the backend reports about a guild's player
type Event interface {
	GuildID() string
}

// TrackStartEvent fires when the backend begins streaming a track
type TrackStartEvent struct {
	Guild   string
	Encoded string
}

func (e TrackStartEvent) GuildID() string { return e.Guild }

// TrackEndEvent fires when a track stops for any reason
type TrackEndEvent struct {
	Guild   string
	Encoded string
	Reason  EndReason
}

func (e TrackEndEvent) GuildID() string { return e.Guild }

// TrackStuckEvent fires when the backend received no audio for ThresholdMs
type TrackStuckEvent struct {
	Guild       string
	Encoded     string
	ThresholdMs int64
}

func (e TrackStuckEvent) GuildID() string { return e.Guild }

// TrackExceptionEvent fires when the backend failed while playing a track
type TrackExceptionEvent struct {
	Guild    string
	Encoded  string
	Message  string
	Severity string
	Cause    string
}

func (e TrackExceptionEvent) GuildID() string { return e.Guild }

// Err converts the exception into an error value
func (e TrackExceptionEvent) Err() error {
	if e.Cause != "" {
		return fmt.Errorf("%s (%s): %s", e.Message, e.Severity, e.Cause)
	}
	return fmt.Errorf("%s (%s)", e.Message, e.Severity)
}

// PlayerUpdateEvent is the backend's periodic report of the playback position
type PlayerUpdateEvent struct {
	Guild    string
	Position time.Duration
}

func (e PlayerUpdateEvent) GuildID() string { return e.Guild }

// WebSocketClosedEvent fires when the voice websocket between backend and Discord closed
type WebSocketClosedEvent struct {
	Guild    string
	Code     int
	Reason   string
	ByRemote bool
}

func (e WebSocketClosedEvent) GuildID() string { return e.Guild }
