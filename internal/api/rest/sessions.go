package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingItem is returned when a create response carries no session
var ErrMissingItem = errors.New("response has no item")

// ListSessions returns the sessions the server knows for a project
func (c *Client) ListSessions(ctx context.Context, projectID string) ([]Session, error) {
	var out listResponse
	err := c.call(ctx, "terminal.list", http.MethodGet, "/projects/{projectId}/terminals",
		map[string]string{"projectId": projectID}, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateSession starts a session in a worktree
func (c *Client) CreateSession(ctx context.Context, projectID, worktreeID string, req CreateRequest) (Session, error) {
	var out itemResponse
	err := c.call(ctx, "terminal.create", http.MethodPost, "/projects/{projectId}/worktrees/{worktreeId}/terminals",
		map[string]string{"projectId": projectID, "worktreeId": worktreeID}, req, &out)
	if err != nil {
		return Session{}, err
	}
	if out.Item == nil || out.Item.ID == "" {
		return Session{}, ErrMissingItem
	}
	return *out.Item, nil
}

// RenameSession sets a session title. A response without an item yields
// ok == false and no error.
func (c *Client) RenameSession(ctx context.Context, projectID, sessionID, title string) (Session, bool, error) {
	var out itemResponse
	err := c.call(ctx, "terminal.rename", http.MethodPost, "/projects/{projectId}/terminals/{sessionId}/rename",
		map[string]string{"projectId": projectID, "sessionId": sessionID}, renameRequest{Title: title}, &out)
	if err != nil {
		return Session{}, false, err
	}
	if out.Item == nil || out.Item.ID == "" {
		return Session{}, false, nil
	}
	return *out.Item, true, nil
}

// CloseSession terminates a session on the server
func (c *Client) CloseSession(ctx context.Context, projectID, sessionID string) error {
	return c.call(ctx, "terminal.close", http.MethodPost, "/projects/{projectId}/terminals/{sessionId}/close",
		map[string]string{"projectId": projectID, "sessionId": sessionID}, nil, nil)
}

// TerminalCounts returns the number of sessions per project
func (c *Client) TerminalCounts(ctx context.Context) (map[string]int, error) {
	var out countsResponse
	if err := c.call(ctx, "terminal.counts", http.MethodGet, "/terminals/counts", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Counts == nil {
		out.Counts = map[string]int{}
	}
	return out.Counts, nil
}

// WebSocketURL resolves where to dial for a session: its wsUrl, else its
// wsPath, else the default terminal route. Relative values are resolved
// against the WebSocket base with http mapped to ws and https to wss.
func (c *Client) WebSocketURL(s Session) string {
	raw := strings.TrimSpace(s.WSURL)
	if raw == "" {
		raw = strings.TrimSpace(s.WSPath)
	}
	if raw == "" {
		raw = APIPrefix + "/terminal/ws?sessionId=" + url.QueryEscape(s.ID)
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		ref.Scheme = wsScheme(ref.Scheme)
		return ref.String()
	}

	resolved := c.wsBase.ResolveReference(ref)
	resolved.Scheme = wsScheme(c.wsBase.Scheme)
	return resolved.String()
}

func wsScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case "https", "wss":
		return "wss"
	default:
		return "ws"
	}
}
