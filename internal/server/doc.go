// Package server provides the read-only status server of `worktabs watch`.
//
// Routes:
//   - GET /healthz: liveness plus a counter snapshot
//   - GET /metrics: Prometheus exposition of the process registry
//   - GET /projects: tracked projects with their tab counts
//   - GET /projects/:id/tabs: tabs of one project in tab order
//   - GET /counts: server-reported session counts per project
//
// Middleware stack: recovery, tracing, metrics, CORS, per-IP rate
// limiting and zap request logging.
//
// Example Usage:
//
//	srv := server.New(server.Config{Address: cfg.Metrics.Address}, mgr, metrics, tracer, logger)
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
