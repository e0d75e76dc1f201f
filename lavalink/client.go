// Package lavalink implements node.Node on top of a Lavalink v4 server:
// a websocket for player events and the REST API for commands and search.
package lavalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"jukebox/node"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNodeNotReady = errors.New("lavalink node is not ready")
	ErrNotJoined    = errors.New("no voice session for guild")
)

const (
	clientName      = "jukebox/1.0"
	minReconnect    = time.Second
	maxReconnect    = 30 * time.Second
	restTimeout     = 10 * time.Second
	handshakeWait   = 10 * time.Second
	playerEventsBuf = 64
)

// Config describes how to reach a Lavalink node
type Config struct {
	Name     string
	Host     string
	Port     int
	Password string
	Secure   bool
}

func (c Config) baseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c Config) websocketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.Host, c.Port)
}

// VoiceGateway sends voice state changes to Discord. *discordgo.Session satisfies it.
type VoiceGateway interface {
	ChannelVoiceJoinManual(guildID, channelID string, mute, deaf bool) error
}

// Client is a connection to one Lavalink node
type Client struct {
	cfg     Config
	gateway VoiceGateway
	http    *http.Client
	dialer  *websocket.Dialer

	mu        sync.RWMutex
	userID    string
	sessionID string
	ready     chan struct{}
	conn      *websocket.Conn
	players   map[string]*playerConn

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a client. Connect must be called before use.
func New(cfg Config, gateway VoiceGateway) *Client {
	return &Client{
		cfg:     cfg,
		gateway: gateway,
		http:    &http.Client{Timeout: restTimeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeWait},
		ready:   make(chan struct{}),
		players: make(map[string]*playerConn),
		stop:    make(chan struct{}),
	}
}

// Connect starts the websocket loop for the given bot user and waits for the
// node's ready message. The loop keeps reconnecting until Close.
func (c *Client) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	return c.WaitReady(ctx)
}

// WaitReady blocks until the node has assigned a session
func (c *Client) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNodeNotReady, ctx.Err())
	}
}

// Close stops the websocket loop and releases all players
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.conn.Close()
		}
		for guildID, p := range c.players {
			p.close()
			delete(c.players, guildID)
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()

	backoff := minReconnect
	for {
		err := c.session()

		select {
		case <-c.stop:
			return
		default:
		}

		log.WithFields(log.Fields{
			"node":    c.cfg.Name,
			"error":   err,
			"backoff": backoff,
		}).Warn("Lavalink websocket disconnected, reconnecting")

		select {
		case <-c.stop:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnect {
			backoff = maxReconnect
		}
	}
}

// session dials the node and reads until the connection drops
func (c *Client) session() error {
	c.mu.RLock()
	headers := http.Header{}
	headers.Set("Authorization", c.cfg.Password)
	headers.Set("User-Id", c.userID)
	headers.Set("Client-Name", clientName)
	if c.sessionID != "" {
		headers.Set("Session-Id", c.sessionID)
	}
	c.mu.RUnlock()

	conn, _, err := c.dialer.Dial(c.cfg.websocketURL(), headers)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.WithField("node", c.cfg.Name).Info("Connected to Lavalink")

	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.ready = make(chan struct{})
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Warn("Ignoring malformed Lavalink message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg message) {
	switch msg.Op {
	case "ready":
		c.onReady(msg)
	case "event":
		ev, ok := msg.toEvent()
		if !ok {
			log.WithField("type", msg.Type).Debug("Ignoring unknown Lavalink event")
			return
		}
		c.mu.RLock()
		p := c.players[msg.GuildID]
		c.mu.RUnlock()
		if p != nil {
			p.deliver(ev)
		}
	case "playerUpdate":
		if msg.State == nil {
			return
		}
		c.mu.RLock()
		p := c.players[msg.GuildID]
		c.mu.RUnlock()
		if p != nil {
			p.deliver(node.PlayerUpdateEvent{
				Guild:    msg.GuildID,
				Position: time.Duration(msg.State.Position) * time.Millisecond,
			})
		}
	case "stats":
	default:
		log.WithField("op", msg.Op).Debug("Ignoring unknown Lavalink op")
	}
}

func (c *Client) onReady(msg message) {
	c.mu.Lock()
	previous := c.sessionID
	c.sessionID = msg.SessionID
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	var lost []*playerConn
	if previous != "" && !msg.Resumed {
		for _, p := range c.players {
			lost = append(lost, p)
		}
	}
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"node":      c.cfg.Name,
		"sessionID": msg.SessionID,
		"resumed":   msg.Resumed,
	}).Info("Lavalink session ready")

	// A fresh session means the node no longer knows our players
	for _, p := range lost {
		p.deliver(node.WebSocketClosedEvent{Guild: p.guildID, Code: 1006, Reason: "lavalink session lost", ByRemote: true})
	}
}

func (c *Client) currentSession() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return "", ErrNodeNotReady
	}
	return c.sessionID, nil
}

var _ node.Node = (*Client)(nil)
