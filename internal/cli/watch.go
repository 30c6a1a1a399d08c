package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/GriffinCanCode/worktabs/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func newWatchCmd(g *globals) *cobra.Command {
	var (
		interval time.Duration
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "watch <project>...",
		Short: "Keep the sessions of projects connected and serve their status",
		Long: `watch loads the sessions of every given project, keeps their connections
alive and refreshes them periodically. Tab state, counts and Prometheus
metrics are served over HTTP until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if interval <= 0 {
				return fmt.Errorf("invalid --interval %s: must be positive", interval)
			}

			rt, err := g.open(true)
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := rt.logger.Component("watch")

			projects := make([]string, 0, len(args))
			for _, p := range args {
				if p = strings.TrimSpace(p); p != "" {
					projects = append(projects, p)
				}
			}
			refresh(ctx, rt.mgr, projects, logger)

			if addr == "" {
				addr = rt.cfg.Metrics.Address
			}
			srv := server.New(server.Config{
				Address:      addr,
				AllowOrigins: rt.cfg.Metrics.AllowOrigins,
				RateLimit:    rt.cfg.Metrics.RateLimit,
				Burst:        rt.cfg.Metrics.Burst,
				Development:  rt.cfg.Logging.Development,
			}, rt.mgr, rt.metrics, rt.tracer, rt.logger.Component("server"))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				case err := <-errCh:
					return err
				case <-ticker.C:
					refresh(ctx, rt.mgr, projects, logger)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "how often to reload sessions and counts")
	cmd.Flags().StringVar(&addr, "addr", "", "status server listen address (default from config)")
	return cmd
}

// refresh reloads every project. Failures are logged and the previous
// state is kept.
func refresh(ctx context.Context, mgr *terminal.Manager, projects []string, logger *zap.Logger) {
	for _, p := range projects {
		if err := mgr.LoadSessions(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Failed to refresh project", zap.String("project_id", p), zap.Error(err))
		}
	}
	if _, err := mgr.LoadTerminalCounts(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to refresh terminal counts", zap.Error(err))
	}
}
