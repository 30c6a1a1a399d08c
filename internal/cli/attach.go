package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/GriffinCanCode/worktabs/internal/ws"
	"github.com/spf13/cobra"
)

const readyPoll = 20 * time.Millisecond

func newAttachCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <project> <session>",
		Short: "Stream a session's output and forward stdin to it",
		Long: `attach prints the session's output to stdout and sends stdin to the
remote terminal. It returns when the remote process exits or on interrupt.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := strings.TrimSpace(args[0])
			sessionID := strings.TrimSpace(args[1])
			ctx := cmd.Context()

			rt, err := g.open(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			exited := make(chan struct{})
			var once sync.Once
			unsubscribe := rt.mgr.Subscribe(sessionID, func(f ws.Frame) {
				switch f.Type {
				case ws.TypeData:
					_, _ = out.Write(f.Bytes())
				case ws.TypeExit:
					once.Do(func() { close(exited) })
				}
			})
			defer unsubscribe()

			if err := rt.mgr.LoadSessions(ctx, project); err != nil {
				return err
			}
			if _, ok := rt.mgr.Session(sessionID); !ok {
				return fmt.Errorf("%w: %s in project %s", terminal.ErrSessionNotFound, sessionID, project)
			}
			rt.mgr.SetActiveTab(project, sessionID)

			go forwardInput(ctx, rt.mgr, sessionID, cmd.InOrStdin())

			select {
			case <-exited:
			case <-ctx.Done():
			}
			return nil
		},
	}
}

// forwardInput sends stdin to the session once its transport is ready
func forwardInput(ctx context.Context, mgr *terminal.Manager, sessionID string, in io.Reader) {
	if !waitReady(ctx, mgr, sessionID) {
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			mgr.Send(sessionID, ws.Input(string(buf[:n])))
		}
		if err != nil {
			return
		}
	}
}

func waitReady(ctx context.Context, mgr *terminal.Manager, sessionID string) bool {
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()

	for {
		status, ok := mgr.Status(sessionID)
		if !ok {
			return false
		}
		if status == terminal.StatusReady {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
