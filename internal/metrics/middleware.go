package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PrometheusMiddleware 记录 API 请求数、延迟与并发量，探针与 /metrics 不计入
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/metrics", "/health", "/ready":
			c.Next()
			return
		}

		APIRequestsInFlight.Inc()
		start := time.Now()
		defer func() {
			APIRequestsInFlight.Dec()

			// 按路由模板聚合，避免作业 ID 撑爆标签基数
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			APIRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
			APIRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}
