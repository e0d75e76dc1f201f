package lavalink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"jukebox/models"
	"jukebox/node"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "youshallnotpass"
	testSession  = "session-abc"
	testUser     = "bot-user"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

// fakeNode is a minimal Lavalink v4 server
type fakeNode struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	requests  []recordedRequest
	headers   http.Header
	ws        *websocket.Conn
	loadTypes map[string]string
	connected chan struct{}
}

func newFakeNode(t *testing.T) *fakeNode {
	f := &fakeNode{
		t:         t,
		loadTypes: make(map[string]string),
		connected: make(chan struct{}, 4),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNode) config() Config {
	u, _ := url.Parse(f.server.URL)
	port, _ := strconv.Atoi(u.Port())
	return Config{Name: "test", Host: u.Hostname(), Port: port, Password: testPassword}
}

func (f *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.URL.Path == "/v4/websocket" {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.headers = r.Header.Clone()
		f.ws = conn
		f.mu.Unlock()
		_ = conn.WriteJSON(map[string]any{"op": "ready", "resumed": false, "sessionId": testSession})
		f.connected <- struct{}{}
		// Drain until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/v4/loadtracks":
		f.serveLoad(w, r.URL.Query().Get("identifier"))
	case strings.HasPrefix(r.URL.Path, "/v4/sessions/"+testSession+"/players/"):
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 404, "message": "Not Found", "path": r.URL.Path})
	}
}

func (f *fakeNode) serveLoad(w http.ResponseWriter, identifier string) {
	track := map[string]any{
		"encoded": "QAAAjQIAJVJpY2sgQXN0bGV5",
		"info": map[string]any{
			"identifier": "dQw4w9WgXcQ",
			"author":     "Rick Astley",
			"length":     212000,
			"title":      "Never Gonna Give You Up",
			"uri":        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"sourceName": "youtube",
			"artworkUrl": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
		},
	}

	var resp map[string]any
	switch {
	case strings.HasPrefix(identifier, "https://"):
		resp = map[string]any{"loadType": "track", "data": track}
	case strings.Contains(identifier, "playlist"):
		resp = map[string]any{"loadType": "playlist", "data": map[string]any{
			"info":   map[string]any{"name": "Hits", "selectedTrack": -1},
			"tracks": []any{track, track},
		}}
	case strings.Contains(identifier, "broken"):
		resp = map[string]any{"loadType": "error", "data": map[string]any{"message": "This video is unavailable", "severity": "common"}}
	case strings.Contains(identifier, "nothing"):
		resp = map[string]any{"loadType": "empty", "data": map[string]any{}}
	default:
		resp = map[string]any{"loadType": "search", "data": []any{track}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeNode) send(t *testing.T, frame map[string]any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.ws)
	require.NoError(t, f.ws.WriteJSON(frame))
}

func (f *fakeNode) requestsFor(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.method == method && r.path == path {
			out = append(out, r)
		}
	}
	return out
}

type gatewayCall struct {
	guildID   string
	channelID string
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
	joins chan gatewayCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{joins: make(chan gatewayCall, 4)}
}

func (g *fakeGateway) ChannelVoiceJoinManual(guildID, channelID string, mute, deaf bool) error {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{guildID, channelID})
	g.mu.Unlock()
	select {
	case g.joins <- gatewayCall{guildID, channelID}:
	default:
	}
	return nil
}

func connectClient(t *testing.T) (*Client, *fakeNode, *fakeGateway) {
	t.Helper()
	f := newFakeNode(t)
	gw := newFakeGateway()
	c := New(f.config(), gw)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx, testUser))
	t.Cleanup(func() { _ = c.Close() })
	return c, f, gw
}

// joinGuild drives a Join through both Discord voice updates
func joinGuild(t *testing.T, c *Client, gw *fakeGateway, guildID string) node.Connection {
	t.Helper()
	type result struct {
		conn node.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		conn, err := c.Join(ctx, guildID, "voice-1")
		done <- result{conn, err}
	}()

	select {
	case call := <-gw.joins:
		assert.Equal(t, "voice-1", call.channelID)
	case <-time.After(2 * time.Second):
		t.Fatal("voice join was not requested")
	}

	c.HandleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
		GuildID: guildID, UserID: testUser, ChannelID: "voice-1", SessionID: "voice-session",
	}})
	c.HandleVoiceServerUpdate(nil, &discordgo.VoiceServerUpdate{GuildID: guildID, Token: "token", Endpoint: "eu.discord.media"})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.conn
	case <-time.After(2 * time.Second):
		t.Fatal("join did not complete")
	}
	return nil
}

func TestClient_ConnectSendsHeaders(t *testing.T) {
	_, f, _ := connectClient(t)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, testUser, f.headers.Get("User-Id"))
	assert.Equal(t, clientName, f.headers.Get("Client-Name"))
}

func TestClient_Search(t *testing.T) {
	c, _, _ := connectClient(t)
	ctx := context.Background()

	t.Run("single track", func(t *testing.T) {
		res, err := c.Search(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Equal(t, models.LoadTypeTrack, res.LoadType)
		require.Len(t, res.Tracks, 1)
		info := res.Tracks[0].Info
		assert.Equal(t, "Never Gonna Give You Up", info.Title)
		assert.Equal(t, "Rick Astley", info.Author)
		assert.Equal(t, int64(212000), info.DurationMs)
		assert.Equal(t, "youtube", info.SourceName)
	})

	t.Run("search", func(t *testing.T) {
		res, err := c.Search(ctx, "ytsearch:rick astley")
		require.NoError(t, err)
		assert.Equal(t, models.LoadTypeSearch, res.LoadType)
		assert.Len(t, res.Tracks, 1)
	})

	t.Run("playlist", func(t *testing.T) {
		res, err := c.Search(ctx, "ytsearch:playlist")
		require.NoError(t, err)
		assert.Equal(t, models.LoadTypePlaylist, res.LoadType)
		assert.Len(t, res.Tracks, 2)
		require.NotNil(t, res.Playlist)
		assert.Equal(t, "Hits", res.Playlist.Name)
	})

	t.Run("error", func(t *testing.T) {
		res, err := c.Search(ctx, "ytsearch:broken")
		require.NoError(t, err)
		assert.Equal(t, models.LoadTypeError, res.LoadType)
		assert.Equal(t, "This video is unavailable", res.Error)
	})

	t.Run("empty", func(t *testing.T) {
		res, err := c.Search(ctx, "ytsearch:nothing")
		require.NoError(t, err)
		assert.Equal(t, models.LoadTypeEmpty, res.LoadType)
		assert.Empty(t, res.Tracks)
	})
}

func TestClient_JoinForwardsVoiceState(t *testing.T) {
	c, f, gw := connectClient(t)

	joinGuild(t, c, gw, "guild-1")

	reqs := f.requestsFor(http.MethodPatch, "/v4/sessions/"+testSession+"/players/guild-1")
	require.Len(t, reqs, 1)
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(reqs[0].body), &body))
	assert.Equal(t, "token", body["voice"]["token"])
	assert.Equal(t, "eu.discord.media", body["voice"]["endpoint"])
	assert.Equal(t, "voice-session", body["voice"]["sessionId"])
}

func TestClient_JoinTimesOutWithoutVoiceServer(t *testing.T) {
	c, _, _ := connectClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Join(ctx, "guild-1", "voice-1")

	assert.Error(t, err)
	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Empty(t, c.players)
}

func TestClient_PlayerCommands(t *testing.T) {
	c, f, gw := connectClient(t)
	conn := joinGuild(t, c, gw, "guild-1")
	ctx := context.Background()
	path := "/v4/sessions/" + testSession + "/players/guild-1"

	require.NoError(t, conn.PlayTrack(ctx, "encoded-track"))
	require.NoError(t, conn.StopTrack(ctx))
	require.NoError(t, conn.SetPaused(ctx, true))
	require.NoError(t, conn.SetVolume(ctx, 250))

	reqs := f.requestsFor(http.MethodPatch, path)
	require.Len(t, reqs, 5)
	assert.JSONEq(t, `{"track":{"encoded":"encoded-track"},"paused":false}`, reqs[1].body)
	assert.JSONEq(t, `{"track":{"encoded":null}}`, reqs[2].body)
	assert.JSONEq(t, `{"paused":true}`, reqs[3].body)
	assert.JSONEq(t, `{"volume":250}`, reqs[4].body)
}

func TestClient_PlayTrackAfterPauseResumes(t *testing.T) {
	c, f, gw := connectClient(t)
	conn := joinGuild(t, c, gw, "guild-1")
	ctx := context.Background()
	path := "/v4/sessions/" + testSession + "/players/guild-1"

	require.NoError(t, conn.SetPaused(ctx, true))
	require.NoError(t, conn.PlayTrack(ctx, "enc-b"))

	reqs := f.requestsFor(http.MethodPatch, path)
	require.Len(t, reqs, 3)
	assert.JSONEq(t, `{"paused":true}`, reqs[1].body)
	assert.JSONEq(t, `{"track":{"encoded":"enc-b"},"paused":false}`, reqs[2].body)
}

func TestClient_EventsReachSubscriber(t *testing.T) {
	c, f, gw := connectClient(t)
	conn := joinGuild(t, c, gw, "guild-1")

	received := make(chan node.Event, 4)
	conn.Subscribe(func(ev node.Event) { received <- ev })

	f.send(t, map[string]any{
		"op": "event", "type": "TrackStartEvent", "guildId": "guild-1",
		"track": map[string]any{"encoded": "abc", "info": map[string]any{"title": "x"}},
	})
	f.send(t, map[string]any{
		"op": "event", "type": "TrackEndEvent", "guildId": "guild-1", "reason": "finished",
		"track": map[string]any{"encoded": "abc", "info": map[string]any{"title": "x"}},
	})
	f.send(t, map[string]any{
		"op": "playerUpdate", "guildId": "guild-1",
		"state": map[string]any{"time": 1700000000000, "position": 42500, "connected": true, "ping": 20},
	})
	f.send(t, map[string]any{
		"op": "event", "type": "WebSocketClosedEvent", "guildId": "guild-1",
		"code": 4006, "reason": "Session is no longer valid.", "byRemote": true,
	})

	var got []node.Event
	for len(got) < 4 {
		select {
		case ev := <-received:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("only received %d events", len(got))
		}
	}

	assert.Equal(t, node.TrackStartEvent{Guild: "guild-1", Encoded: "abc"}, got[0])
	assert.Equal(t, node.TrackEndEvent{Guild: "guild-1", Encoded: "abc", Reason: node.EndReasonFinished}, got[1])
	assert.Equal(t, node.PlayerUpdateEvent{Guild: "guild-1", Position: 42500 * time.Millisecond}, got[2])
	assert.Equal(t, node.WebSocketClosedEvent{Guild: "guild-1", Code: 4006, Reason: "Session is no longer valid.", ByRemote: true}, got[3])
}

func TestClient_Leave(t *testing.T) {
	c, f, gw := connectClient(t)
	joinGuild(t, c, gw, "guild-1")

	require.NoError(t, c.Leave(context.Background(), "guild-1"))

	assert.Len(t, f.requestsFor(http.MethodDelete, "/v4/sessions/"+testSession+"/players/guild-1"), 1)
	gw.mu.Lock()
	defer gw.mu.Unlock()
	last := gw.calls[len(gw.calls)-1]
	assert.Equal(t, gatewayCall{"guild-1", ""}, last)
}

func TestClient_RESTErrorIncludesMessage(t *testing.T) {
	c, _, _ := connectClient(t)

	err := c.do(context.Background(), http.MethodGet, "/v4/unknown", nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestMessage_ToEvent(t *testing.T) {
	raw := `{"op":"event","type":"TrackExceptionEvent","guildId":"g","track":{"encoded":"e","info":{}},
		"exception":{"message":"boom","severity":"fault","cause":"java.lang.Exception"}}`
	var msg message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	ev, ok := msg.toEvent()
	require.True(t, ok)
	exc, ok := ev.(node.TrackExceptionEvent)
	require.True(t, ok)
	assert.Equal(t, "e", exc.Encoded)
	assert.Contains(t, exc.Err().Error(), "boom")

	stuck := message{Type: "TrackStuckEvent", GuildID: "g", ThresholdMs: 10000, Track: &wireTrack{Encoded: "e"}}
	ev, ok = stuck.toEvent()
	require.True(t, ok)
	assert.Equal(t, node.TrackStuckEvent{Guild: "g", Encoded: "e", ThresholdMs: 10000}, ev)

	_, ok = message{Type: "SomethingNew"}.toEvent()
	assert.False(t, ok)
}
