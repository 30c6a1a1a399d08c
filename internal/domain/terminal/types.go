package terminal

import (
	"context"

	"github.com/GriffinCanCode/worktabs/internal/api/rest"
	"github.com/GriffinCanCode/worktabs/internal/ws"
)

// Status is the local connection state of a session
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusReady      Status = "ready"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Tab is a snapshot of one tracked session
type Tab struct {
	rest.Session
	Status Status `json:"clientStatus"`
}

// CreateOptions configures CreateSession. WorktreeID is required.
type CreateOptions struct {
	WorktreeID string
	WorkingDir string
	Title      string
	Rows       int
	Cols       int
}

// AttachOptions configures AttachOrUpdate
type AttachOptions struct {
	Activate bool
	// ProjectHint is used when the payload carries no project
	ProjectHint string
}

// Listener receives every inbound frame of one session
type Listener func(ws.Frame)

// StatusHandler observes connection status changes
type StatusHandler func(sessionID string, status Status)

// API is the collaborator REST surface the manager depends on
type API interface {
	ListSessions(ctx context.Context, projectID string) ([]rest.Session, error)
	CreateSession(ctx context.Context, projectID, worktreeID string, req rest.CreateRequest) (rest.Session, error)
	RenameSession(ctx context.Context, projectID, sessionID, title string) (rest.Session, bool, error)
	CloseSession(ctx context.Context, projectID, sessionID string) error
	TerminalCounts(ctx context.Context) (map[string]int, error)
	WebSocketURL(s rest.Session) string
}
