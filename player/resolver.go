package player

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"jukebox/models"
	"jukebox/node"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

// Search prefixes understood by the node
var searchPlatforms = map[string]string{
	"youtube":      "ytsearch",
	"youtubemusic": "ytmsearch",
	"soundcloud":   "scsearch",
	"spotify":      "spsearch",
	"deezer":       "dzsearch",
	"applemusic":   "amsearch",
}

// Resolution is the set of tracks a user query turned into
type Resolution struct {
	Tracks   []models.Track
	Playlist *models.PlaylistInfo
}

// Resolver turns user input into playable tracks through the node
type Resolver struct {
	node            node.Node
	defaultPlatform string
	cache           *expirable.LRU[string, *models.SearchResult]
}

// NewResolver creates a resolver. defaultPlatform is a search prefix such as "ytmsearch".
func NewResolver(n node.Node, defaultPlatform string, cacheSize int, cacheTTL time.Duration) *Resolver {
	if defaultPlatform == "" {
		defaultPlatform = "ytmsearch"
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Resolver{
		node:            n,
		defaultPlatform: defaultPlatform,
		cache:           expirable.NewLRU[string, *models.SearchResult](cacheSize, nil, cacheTTL),
	}
}

// Platforms lists the platform names accepted by Resolve
func Platforms() []string {
	names := make([]string, 0, len(searchPlatforms))
	for name := range searchPlatforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve loads a URL directly or searches for plain text. platform may be
// empty to use the default. Every returned track is stamped with requester.
func (r *Resolver) Resolve(ctx context.Context, input, platform string, requester models.UserRef) (*Resolution, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &ValidationError{Field: "query", Message: "must not be empty"}
	}

	identifier, isURL, err := r.identifier(input, platform)
	if err != nil {
		return nil, err
	}

	result, err := r.search(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	var playlist *models.PlaylistInfo

	switch result.LoadType {
	case models.LoadTypeTrack:
		if len(result.Tracks) > 0 {
			tracks = result.Tracks[:1]
		}
	case models.LoadTypePlaylist:
		tracks = result.Tracks
		playlist = result.Playlist
	case models.LoadTypeSearch:
		if len(result.Tracks) == 0 {
			break
		}
		best := result.Tracks[0]
		if target, ok := ParseMatchTarget(input); ok && !isURL {
			best, _ = SelectBestTrack(target, result.Tracks)
		}
		tracks = []models.Track{best}
	case models.LoadTypeError:
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, result.Error)
	}

	if len(tracks) == 0 {
		return nil, ErrNoMatches
	}

	stamped := make([]models.Track, len(tracks))
	for i, t := range tracks {
		t.Requester = requester
		stamped[i] = t
	}
	return &Resolution{Tracks: stamped, Playlist: playlist}, nil
}

func (r *Resolver) identifier(input, platform string) (string, bool, error) {
	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return input, true, nil
	}

	prefix := r.defaultPlatform
	if platform != "" {
		p, ok := searchPlatforms[strings.ToLower(platform)]
		if !ok {
			return "", false, &ValidationError{Field: "source", Message: fmt.Sprintf("unknown platform %q", platform)}
		}
		prefix = p
	}
	return prefix + ":" + input, false, nil
}

func (r *Resolver) search(ctx context.Context, identifier string) (*models.SearchResult, error) {
	if cached, ok := r.cache.Get(identifier); ok {
		log.WithField("identifier", identifier).Debug("Search cache hit")
		return cached, nil
	}

	result, err := r.node.Search(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if result.LoadType != models.LoadTypeError && result.LoadType != models.LoadTypeEmpty {
		r.cache.Add(identifier, result)
	}
	return result, nil
}
