package player

import (
	"errors"
	"fmt"
)

var (
	// ErrInitFailure means the dispatcher never obtained a voice connection
	ErrInitFailure = errors.New("failed to connect to the audio node")
	// ErrInvalidTrackPayload marks a track without a playable payload
	ErrInvalidTrackPayload = errors.New("track has no playable payload")
	// ErrPlaybackFailure covers node-side load failures and exceptions
	ErrPlaybackFailure = errors.New("playback failed")
	// ErrConnectionClosed means the voice websocket went away
	ErrConnectionClosed = errors.New("voice connection closed")
	ErrNoConnection     = errors.New("player is not connected to voice")
	ErrDestroyed        = errors.New("player has been destroyed")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrNoMatches        = errors.New("no tracks matched the query")
	ErrSearchFailed     = errors.New("search failed")
)

// ValidationError is returned for out-of-range or unknown user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DestroyReason describes why a dispatcher was torn down
type DestroyReason string

const (
	ReasonStopped          DestroyReason = "stopped"
	ReasonQueueExhausted   DestroyReason = "queue_exhausted"
	ReasonInitFailure      DestroyReason = "init_failure"
	ReasonPlaybackFailure  DestroyReason = "playback_failure"
	ReasonConnectionClosed DestroyReason = "connection_closed"
	ReasonDisconnected     DestroyReason = "disconnected"
	ReasonAlone            DestroyReason = "alone_timeout"
	ReasonShutdown         DestroyReason = "shutdown"
)
