package rest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Session is the collaborator's view of one terminal session
type Session struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	WorktreeID string `json:"worktreeId"`
	WorkingDir string `json:"workingDir"`
	Title      string `json:"title"`
	CreatedAt  string `json:"createdAt"`
	LastActive string `json:"lastActive,omitempty"`
	Status     string `json:"status,omitempty"`
	WSPath     string `json:"wsPath,omitempty"`
	WSURL      string `json:"wsUrl,omitempty"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Encoding   string `json:"encoding,omitempty"`
}

// CreateRequest is the body of a create call
type CreateRequest struct {
	WorkingDir string `json:"workingDir"`
	Title      string `json:"title"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type listResponse struct {
	Items []Session `json:"items"`
}

type itemResponse struct {
	Item *Session `json:"item"`
}

type countsResponse struct {
	Counts map[string]int `json:"counts"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, body)
}

// Temporary reports whether retrying later could succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// decode accepts both a bare payload and one wrapped as {"body": payload}
func decode(data []byte, out any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	if err := sonic.Unmarshal(data, &envelope); err == nil && len(envelope.Body) > 0 && string(envelope.Body) != "null" {
		data = envelope.Body
	}
	return sonic.Unmarshal(data, out)
}
