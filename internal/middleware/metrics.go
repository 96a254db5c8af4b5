package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/metrics"
)

// Metrics records request counts and latency by route template so ids in
// paths do not explode label cardinality.
func Metrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.RequestStarted()
		defer m.RequestFinished()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
