// Package gateway implements the HTTP collaborators that own server-side
// PTY lifecycle: session creation, liveness listing, and best-effort
// deletion. It also derives the per-session WebSocket endpoint.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// Client talks to the session gateway.
type Client struct {
	http    *resty.Client
	baseURL string
}

type createRequest struct {
	Profile types.Profile `json:"profile"`
	Cols    int           `json:"cols"`
	Rows    int           `json:"rows"`
	Cwd     string        `json:"cwd,omitempty"`
}

type createResponse struct {
	SessionID string `json:"session_id"`
}

type listResponse struct {
	Sessions []types.LiveSession `json:"sessions"`
}

// New creates a gateway client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	base := strings.TrimRight(baseURL, "/")
	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, baseURL: base}
}

// Create asks the server to spawn a new PTY and returns the fresh session id.
func (c *Client) Create(ctx context.Context, profile types.Profile, cols, rows int, cwd string) (string, error) {
	var out createResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createRequest{Profile: profile, Cols: cols, Rows: rows, Cwd: cwd}).
		SetResult(&out).
		Post("/sessions")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create session: gateway returned %s", resp.Status())
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: gateway returned empty id")
	}
	return out.SessionID, nil
}

// List returns the sessions the server currently reports alive. This is the
// single-shot liveness check used by boot reconciliation and snapshot
// restore; there is no retry loop.
func (c *Client) List(ctx context.Context) ([]types.LiveSession, error) {
	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list sessions: gateway returned %s", resp.Status())
	}
	return out.Sessions, nil
}

// Delete kills the server-side PTY. Best-effort: callers have already
// committed to closing client-side, so they swallow this error after
// logging it.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/sessions/" + url.PathEscape(sessionID))
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete session %s: gateway returned %s", sessionID, resp.Status())
	}
	return nil
}

// SocketURL returns the WebSocket endpoint for a session id.
func (c *Client) SocketURL(sessionID string) string {
	ws := c.baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/sessions/" + url.PathEscape(sessionID) + "/ws"
}
