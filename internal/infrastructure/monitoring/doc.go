/*
Package monitoring provides Prometheus metrics for worktabs.

Each Metrics value owns a private registry. The status server exposes it
through Handler, and the terminal manager, REST client and order store
record into it. All Record/Set/Inc methods accept a nil receiver, so
components can run without metrics.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "terminal.list")
	items, err := fetch(ctx)
	timer.Stop(monitoring.Outcome(err))
*/
package monitoring
