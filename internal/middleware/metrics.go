package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmatch/dmatch-api/internal/service"
)

// probePaths are hit by orchestrators and scrapers and are kept out of the
// request histograms.
var probePaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// Metrics records request latency and status per route template.
// Unmatched routes share one label to bound cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		path := c.FullPath()
		if _, probe := probePaths[path]; probe {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
