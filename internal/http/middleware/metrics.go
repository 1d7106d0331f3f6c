package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/observability"
)

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		observability.APIInflight.Inc()
		defer observability.APIInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		observability.APIRequests.WithLabelValues(route, method, observability.StatusClass(c.Writer.Status())).Inc()
		observability.APILatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
