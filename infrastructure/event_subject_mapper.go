package infrastructure

import (
	"strings"

	"jukebox/events"
)

const (
	// PlayerStreamName is the JetStream stream holding playback events
	PlayerStreamName = "jukebox_player"

	subjectPrefix = "jukebox.player."
)

// EventSubjectMapper maps bus events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject returns jukebox.player.<event type>
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return subjectPrefix + string(event.Type())
}

// MapSubjectToEventType is the inverse of MapEventToSubject
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	return events.EventType(strings.TrimPrefix(subject, subjectPrefix))
}

// GetAllSubjects returns the subjects the stream must capture
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{subjectPrefix + "*"}
}
