package models

// LoadType describes the shape of a node search result
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// PlaylistInfo is present when a search resolved to a playlist
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// SearchResult is what the node returns for a query or URL
type SearchResult struct {
	LoadType LoadType
	Tracks   []Track
	Playlist *PlaylistInfo
	// Error is set when LoadType is LoadTypeError
	Error string
}
