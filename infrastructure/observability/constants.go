package observability

// Metric name prefixes
const (
	MetricPrefix = "jukebox"
)

// Metric names
const (
	// Playback metrics
	TracksStartedTotal = MetricPrefix + ".tracks.started_total"
	TracksEndedTotal   = MetricPrefix + ".tracks.ended_total"

	// Player lifecycle metrics
	PlayersActive         = MetricPrefix + ".players.active"
	PlayersDestroyedTotal = MetricPrefix + ".players.destroyed_total"

	// Search metrics
	SearchesTotal  = MetricPrefix + ".search.requests_total"
	SearchDuration = MetricPrefix + ".search.duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelSource    = "source"
	LabelOutcome   = "outcome"
	LabelReason    = "reason"
	LabelPlatform  = "platform"
	LabelResult    = "result"
	LabelEventType = "event_type"
)

// Search results
const (
	SearchResultHit     = "hit"
	SearchResultNoMatch = "no_match"
	SearchResultError   = "error"
)
