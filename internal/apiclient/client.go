// Package apiclient fetches channel and history data from a relay over
// plain HTTP. Bearer tokens, when available, ride only on these calls,
// never on the realtime connection.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chatbox/internal/models"
)

// TokenSource supplies a bearer token for authenticated calls. A nil
// TokenSource, or an empty token, means anonymous requests.
type TokenSource interface {
	Token() string
}

type Client struct {
	httpClient *http.Client
	tokens     TokenSource
}

func New(tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{},
		tokens:     tokens,
	}
}

// Channels fetches the relay's channel list, preserving server order.
func (c *Client) Channels(ctx context.Context, baseURL string) ([]models.Channel, error) {
	var resp struct {
		Channels []models.Channel `json:"channels"`
	}
	if err := c.get(ctx, baseURL, "/channels", &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// ChannelMessages fetches the history of one channel.
func (c *Client) ChannelMessages(ctx context.Context, baseURL, channelID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.get(ctx, baseURL, "/channels/"+channelID+"/messages", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) get(ctx context.Context, baseURL, path string, out any) error {
	url := strings.TrimSuffix(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
