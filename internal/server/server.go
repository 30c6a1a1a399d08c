package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/api/middleware"
	"github.com/GriffinCanCode/worktabs/internal/domain/terminal"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Source is the terminal state the server reports on
type Source interface {
	Projects() []string
	ListSessions(projectID string) []terminal.Tab
	ActiveTabID(projectID string) string
	TerminalCounts() map[string]int
}

// Config contains server configuration
type Config struct {
	Address      string
	AllowOrigins []string
	// RateLimit is requests per second per client; 0 disables limiting
	RateLimit   int
	Burst       int
	Development bool
}

// Server serves terminal state over HTTP
type Server struct {
	router  *gin.Engine
	http    *http.Server
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a server. metrics and tracer may be nil.
func New(cfg Config, source Source, metrics *monitoring.Metrics, tracer *tracing.Tracer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if tracer != nil {
		router.Use(tracing.HTTPMiddleware(tracer))
	}
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.StatusCORSConfig(cfg.AllowOrigins)))
	if cfg.RateLimit > 0 {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit),
			zap.Int("burst", cfg.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             max(cfg.Burst, 1),
		}))
	}
	router.Use(middleware.Logger(logger))

	h := &handlers{source: source, metrics: metrics}
	router.GET("/healthz", h.health)
	router.GET("/projects", h.projects)
	router.GET("/projects/:id/tabs", h.tabs)
	router.GET("/counts", h.counts)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return &Server{
		router:  router,
		logger:  logger,
		metrics: metrics,
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting status server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server")
	return s.http.Shutdown(ctx)
}
