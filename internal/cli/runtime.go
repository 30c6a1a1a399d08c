package cli

import (
	"fmt"

	"github.com/GriffinCanCode/worktabs/internal/api/rest"
	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/config"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/worktabs/internal/storage/order"
	"github.com/GriffinCanCode/worktabs/internal/ws"
	"go.uber.org/zap"
)

// runtime is everything one command invocation needs
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	client  *rest.Client
	kv      order.KV
	mgr     *terminal.Manager
}

func (g *globals) open(logStatus bool) (*runtime, error) {
	cfg, err := config.LoadFile(g.cfgFile)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	logger, err := logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development))
	if err != nil {
		logger = logging.Fallback(cfg.Logging.Development)
		logger.Warn("Invalid logging configuration, using defaults", zap.Error(err))
	}

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(),
	}
	rt.tracer = tracing.New("worktabs", logger.Component("tracing"))

	rt.client, err = rest.NewClient(rest.Options{
		BaseURL:   cfg.API.BaseURL,
		WSBaseURL: cfg.API.WSBaseURL,
		Token:     cfg.API.Token,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.API.Timeout.Std(),
		Retries:   cfg.API.Retries,
		RateLimit: cfg.API.RateLimit,
		Logger:    logger.Component("api"),
		Metrics:   rt.metrics,
		Tracer:    rt.tracer,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.kv, err = order.OpenKV(cfg.Store)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open tab order store: %w", err)
	}
	store := order.Open(rt.kv, cfg.Store.Key, logger.Component("order")).WithMetrics(rt.metrics)

	dialer := g.dialer
	if dialer == nil {
		dialer = ws.NewDialer(cfg.Terminal.DialTimeout.Std(), cfg.API.Token)
	}

	termLogger := logger.Component("terminal")
	opts := terminal.Options{
		API:            rt.client,
		Dialer:         dialer,
		Store:          store,
		Logger:         termLogger,
		Metrics:        rt.metrics,
		ReconnectDelay: cfg.Terminal.ReconnectDelay.Std(),
		DialTimeout:    cfg.Terminal.DialTimeout.Std(),
		DefaultRows:    cfg.Terminal.DefaultRows,
		DefaultCols:    cfg.Terminal.DefaultCols,
	}
	if logStatus {
		opts.OnStatusChange = func(id string, s terminal.Status) {
			termLogger.Info("Session status changed", zap.String("session_id", id), zap.String("status", string(s)))
		}
	}

	rt.mgr, err = terminal.NewManager(opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the runtime in reverse order of construction
func (rt *runtime) Close() {
	if rt.mgr != nil {
		_ = rt.mgr.Close()
	}
	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil {
			rt.logger.Warn("Failed to close tab order store", zap.Error(err))
		}
	}
	if rt.tracer != nil {
		rt.tracer.Close()
	}
	_ = rt.logger.Sync()
}
