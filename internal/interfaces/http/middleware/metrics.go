package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts and latencies per route.  The route
// template (c.FullPath) keeps label cardinality bounded; unmatched routes
// collapse into a single label.
func Metrics(m *prometheus.PipelineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
