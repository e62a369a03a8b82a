package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader 请求 ID 头，客户端未提供时生成
const RequestIDHeader = "X-Request-ID"

// RequestLogger 请求日志中间件，探针请求不记录
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/health", "/ready", "/metrics":
			c.Next()
			return
		}

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if tenantID := c.GetString("tenant_id"); tenantID != "" {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			log.Error("HTTP Request", fields...)
			return
		}
		log.Info("HTTP Request", fields...)
	}
}

// CORS 跨域中间件，允许列表在创建时从环境变量读取
func CORS() gin.HandlerFunc {
	allowedOrigins := envList("CORS_ALLOW_ORIGINS")
	allowedHeaders := strings.Join(envList("CORS_ALLOW_HEADERS",
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Tenant-ID", RequestIDHeader,
	), ", ")
	allowedMethods := strings.Join(envList("CORS_ALLOW_METHODS", "GET", "POST", "OPTIONS"), ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
