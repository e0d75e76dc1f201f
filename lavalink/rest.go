package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"jukebox/models"

	log "github.com/sirupsen/logrus"
)

// restError is the body Lavalink returns with non-2xx responses
type restError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr restError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Search resolves a URL or a prefixed search query such as "ytsearch:song"
func (c *Client) Search(ctx context.Context, query string) (*models.SearchResult, error) {
	var raw loadResult
	if err := c.do(ctx, http.MethodGet, "/v4/loadtracks?identifier="+url.QueryEscape(query), nil, &raw); err != nil {
		return nil, err
	}
	result, err := raw.toModel()
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"query":    query,
		"loadType": result.LoadType,
		"tracks":   len(result.Tracks),
	}).Debug("Lavalink search completed")
	return result, nil
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sessionID, err := c.currentSession()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return c.do(ctx, http.MethodPatch, path, update, nil)
}

func (c *Client) destroyPlayer(ctx context.Context, guildID string) error {
	sessionID, err := c.currentSession()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
