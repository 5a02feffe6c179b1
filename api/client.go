// Package api is the REST client for the dashboard backend. The backend
// owns conversations and pipeline execution; this client only reads and
// triggers, it keeps no state of its own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dashtui/chat"
	"dashtui/runs"
)

// Conversation is backend-owned conversation metadata.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	IsArchived bool      `json:"is_archived"`
}

type wireToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    string         `json:"status"`
	Result    string         `json:"result,omitempty"`
}

type wireMessage struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

// Client talks to one backend instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StreamURL derives the WebSocket endpoint from the base URL.
func (c *Client) StreamURL() string {
	u := c.baseURL + "/api/assistant/stream"
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u
}

// StreamToken fetches a short-lived credential for the event stream.
func (c *Client) StreamToken(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.get(ctx, "/api/assistant/token", &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListConversations returns all non-archived conversations, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.get(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the persisted transcript for a conversation, each message
// carrying its own tool-call history.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var wire []wireMessage
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, err
	}

	messages := make([]chat.Message, len(wire))
	for i, wm := range wire {
		msg := chat.Message{
			ID:        wm.ID,
			Role:      wm.Role,
			Content:   wm.Content,
			Timestamp: wm.Timestamp,
		}
		for _, wt := range wm.ToolCalls {
			status := wt.Status
			if status == "" {
				status = chat.ToolStatusCompleted
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:     wt.ID,
				Name:   wt.Name,
				Args:   wt.Arguments,
				Status: status,
				Result: wt.Result,
			})
		}
		messages[i] = msg
	}
	return messages, nil
}

// CreateConversation explicitly creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	var out Conversation
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/api/conversations", body, &out); err != nil {
		return Conversation{}, err
	}
	return out, nil
}

// RenameConversation updates a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	path := "/api/conversations/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPatch, path, map[string]string{"title": title}, nil)
}

// ArchiveConversation archives a conversation.
func (c *Client) ArchiveConversation(ctx context.Context, id string) error {
	path := "/api/conversations/" + url.PathEscape(id) + "/archive"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteConversation permanently deletes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	path := "/api/conversations/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ExecutePipeline runs a pipeline by name and returns its outcome. The call
// is synchronous from the client's point of view; lifecycle bookkeeping is
// the runs tracker's job.
func (c *Client) ExecutePipeline(ctx context.Context, name, input string) (runs.Result, error) {
	var resp struct {
		Success  bool           `json:"success"`
		Output   string         `json:"output"`
		Error    string         `json:"error"`
		Metadata map[string]any `json:"metadata"`
	}
	path := "/api/pipelines/" + url.PathEscape(name) + "/execute"
	body := map[string]string{"input": input}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return runs.Result{}, err
	}
	return runs.Result{
		Success:  resp.Success,
		Output:   resp.Output,
		Error:    resp.Error,
		Metadata: resp.Metadata,
	}, nil
}

// Ping checks if the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.get(ctx, "/api/health", nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
