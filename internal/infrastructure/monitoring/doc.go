/*
Package monitoring provides Prometheus metrics for the session manager and
the dev PTY server.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	// Gin middleware on the dev server
	router.Use(monitoring.Middleware(metrics))

	// Record domain events
	metrics.SessionsActive.Inc()
	metrics.RecordFrame("in", "output")
	metrics.RecordTransition("docked", "detached")

Expose via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
