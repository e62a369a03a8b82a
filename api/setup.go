package api

import (
	"net/http"

	"github.com/fiftycompanies/waide-sub001/api/handlers/common"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(c *AppContainer) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "接口不存在")
	})
	router.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, common.CodeMethodNotAllowed, "请求方法不支持")
	})

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(c.DB, c.RedisClient))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router, c)
	return router
}
