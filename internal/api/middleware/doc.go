// Package middleware provides the gin middleware of the worktabs status
// server.
//
// Middleware stack includes:
//   - CORS: read-only cross-origin access with configurable origins
//   - RateLimit: per-IP token buckets, idle clients evicted
//   - GlobalRateLimit: one bucket shared by every client
//   - Logger: zap request logging tagged with the trace id
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.StatusCORSConfig(cfg.Metrics.AllowOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.Use(middleware.Logger(logger))
package middleware
