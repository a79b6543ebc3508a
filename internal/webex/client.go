package webex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmorrell/jot/internal/errors"
)

// DefaultBaseURL is the Webex REST API root.
const DefaultBaseURL = "https://webexapis.com/v1"

// Every outbound call carries a bounded timeout; the chat platform is a
// collaborator, never something to block on indefinitely.
const callTimeout = 8 * time.Second

// Message is the subset of a Webex message the bot acts on.
type Message struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	ParentID    string `json:"parentId"`
	PersonID    string `json:"personId"`
	PersonEmail string `json:"personEmail"`
	PersonType  string `json:"personType"`
	Text        string `json:"text"`
}

// Client talks to the Webex messages API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Webex client with the bot token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: callTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMessage fetches the full message body for a webhook delivery, which
// only carries the message id.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/messages/%s", c.baseURL, messageID), nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewUpstream("webex", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.NewUpstream("webex", fmt.Errorf("GET message %s: HTTP %d: %s", messageID, resp.StatusCode, body))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, errors.NewUpstream("webex", err)
	}
	return &msg, nil
}

// PostMessage posts plain text to a room.
func (c *Client) PostMessage(ctx context.Context, roomID, text string) error {
	payload, err := json.Marshal(map[string]string{"roomId": roomID, "text": text})
	if err != nil {
		return errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewUpstream("webex", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.NewUpstream("webex", fmt.Errorf("POST message: HTTP %d: %s", resp.StatusCode, body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
