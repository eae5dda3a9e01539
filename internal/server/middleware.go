package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wodbox/internal/metrics"
)

const unmatchedRoute = "unmatched"

// MetricsMiddleware records every request under its route pattern, so
// /classes/:classID counts as one series.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
