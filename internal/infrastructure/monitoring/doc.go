/*
Package monitoring provides Prometheus metrics for the launcher.

# Overview

Each Metrics value owns a private registry, so the state manager, the HTTP
layer and tests can all create one without colliding on the default registry.

# Features

- HTTP request metrics (latency, status)
- Activity transition outcomes (committed, noop, rejected, failed)
- Presence client call latency and failures
- State stream connection metrics
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "set_activity")
	err := client.SetActivity(ctx, activity)
	timer.Stop(monitoring.Status(err))
*/
package monitoring
