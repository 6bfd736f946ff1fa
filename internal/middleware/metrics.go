package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wilsbb/tor-accreditation-api/internal/service"
)

// Metrics observes every request on the registered route template so path
// parameters such as applicant ids do not explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
