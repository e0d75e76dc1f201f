package lavalink

import (
	"encoding/json"
	"fmt"

	"jukebox/models"
	"jukebox/node"
)

type wireTrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

type wireTrack struct {
	Encoded string        `json:"encoded"`
	Info    wireTrackInfo `json:"info"`
}

func (t wireTrack) toModel() models.Track {
	return models.Track{
		Encoded: t.Encoded,
		Info: models.TrackInfo{
			Title:      t.Info.Title,
			Author:     t.Info.Author,
			URI:        t.Info.URI,
			DurationMs: t.Info.Length,
			ArtworkURL: t.Info.ArtworkURL,
			SourceName: t.Info.SourceName,
			Identifier: t.Info.Identifier,
			IsStream:   t.Info.IsStream,
		},
	}
}

type wireException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// loadResult is the /v4/loadtracks response; Data depends on LoadType
type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type wirePlaylist struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

func (r loadResult) toModel() (*models.SearchResult, error) {
	result := &models.SearchResult{LoadType: models.LoadType(r.LoadType)}

	switch result.LoadType {
	case models.LoadTypeTrack:
		var t wireTrack
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode track: %w", err)
		}
		result.Tracks = []models.Track{t.toModel()}
	case models.LoadTypePlaylist:
		var p wirePlaylist
		if err := json.Unmarshal(r.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode playlist: %w", err)
		}
		for _, t := range p.Tracks {
			result.Tracks = append(result.Tracks, t.toModel())
		}
		result.Playlist = &models.PlaylistInfo{Name: p.Info.Name, SelectedTrack: p.Info.SelectedTrack}
	case models.LoadTypeSearch:
		var tracks []wireTrack
		if err := json.Unmarshal(r.Data, &tracks); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}
		for _, t := range tracks {
			result.Tracks = append(result.Tracks, t.toModel())
		}
	case models.LoadTypeEmpty:
	case models.LoadTypeError:
		var e wireException
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode load error: %w", err)
		}
		result.Error = e.Message
	default:
		return nil, fmt.Errorf("unknown load type %q", r.LoadType)
	}
	return result, nil
}

// message is any websocket frame from the node
type message struct {
	Op string `json:"op"`

	// ready
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	// playerUpdate and event
	GuildID string `json:"guildId"`
	State   *struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int   `json:"ping"`
	} `json:"state"`

	// event
	Type        string         `json:"type"`
	Track       *wireTrack     `json:"track"`
	Reason      string         `json:"reason"`
	Exception   *wireException `json:"exception"`
	ThresholdMs int64          `json:"thresholdMs"`
	Code        int            `json:"code"`
	ByRemote    bool           `json:"byRemote"`
}

func (m message) encoded() string {
	if m.Track == nil {
		return ""
	}
	return m.Track.Encoded
}

// toEvent converts an "event" frame. ok is false for unknown event types.
func (m message) toEvent() (node.Event, bool) {
	switch m.Type {
	case "TrackStartEvent":
		return node.TrackStartEvent{Guild: m.GuildID, Encoded: m.encoded()}, true
	case "TrackEndEvent":
		return node.TrackEndEvent{Guild: m.GuildID, Encoded: m.encoded(), Reason: node.EndReason(m.Reason)}, true
	case "TrackExceptionEvent":
		ev := node.TrackExceptionEvent{Guild: m.GuildID, Encoded: m.encoded()}
		if m.Exception != nil {
			ev.Message = m.Exception.Message
			ev.Severity = m.Exception.Severity
			ev.Cause = m.Exception.Cause
		}
		return ev, true
	case "TrackStuckEvent":
		return node.TrackStuckEvent{Guild: m.GuildID, Encoded: m.encoded(), ThresholdMs: m.ThresholdMs}, true
	case "WebSocketClosedEvent":
		return node.WebSocketClosedEvent{Guild: m.GuildID, Code: m.Code, Reason: m.Reason, ByRemote: m.ByRemote}, true
	}
	return nil, false
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// playerUpdate is the PATCH body. A track update with a nil Encoded sends an
// explicit null, which stops playback.
type playerUpdate struct {
	Track  *trackUpdate `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Volume *int         `json:"volume,omitempty"`
	Voice  *voiceState  `json:"voice,omitempty"`
}

type trackUpdate struct {
	Encoded *string `json:"encoded"`
}
