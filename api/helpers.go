package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ServiceName 对外暴露的服务名称
const ServiceName = "waide-pipeline"

const readinessTimeout = 2 * time.Second

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

// HealthCheck 健康检查
// @Summary 服务健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
	}
}

// ReadinessCheck 就绪检查
// 数据库不可用时返回 503；Redis 仅影响后台队列，只报告状态
// @Summary 服务就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func ReadinessCheck(db *gorm.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Reason: "database connection error"})
			return
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Reason: "database ping failed"})
			return
		}

		resp := ReadinessResponse{Status: "ready", Database: "connected", Redis: "disabled"}
		if rdb != nil {
			resp.Redis = "connected"
			if err := rdb.Ping(ctx).Err(); err != nil {
				resp.Redis = "unavailable"
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// splitList 拆分逗号分隔的列表，忽略空项
func splitList(raw string) []string {
	var res []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// envList 读取逗号分隔的环境变量，未设置时返回 def
func envList(key string, def ...string) []string {
	if list := splitList(os.Getenv(key)); len(list) > 0 {
		return list
	}
	return def
}

// NormalizeRedisConfig 归一化 Redis 配置，未配置的字段回退到环境变量与默认值
func NormalizeRedisConfig(cfg config.RedisConfig) config.RedisConfig {
	resolved := cfg
	resolved.Host = strings.TrimSpace(resolved.Host)
	resolved.Mode = strings.ToLower(strings.TrimSpace(resolved.Mode))
	if resolved.Mode == "" {
		resolved.Mode = "standalone"
	}

	if resolved.Host == "" {
		if host, port := parseRedisAddr(os.Getenv("REDIS_ADDR")); host != "" {
			resolved.Host = host
			if resolved.Port == 0 {
				resolved.Port = port
			}
		}
	}
	if resolved.Host == "" {
		resolved.Host = "localhost"
	}
	if resolved.Port == 0 {
		resolved.Port = 6379
	}

	switch {
	case resolved.Mode == "sentinel" && len(resolved.SentinelAddrs) == 0:
		resolved.SentinelAddrs = envList("APP_REDIS_SENTINEL_ADDRS")
	case resolved.Mode == "cluster" && len(resolved.ClusterAddrs) == 0:
		resolved.ClusterAddrs = envList("APP_REDIS_CLUSTER_ADDRS")
	}

	if resolved.PoolSize <= 0 {
		resolved.PoolSize = 10
	}
	if resolved.MinIdleConns <= 0 {
		resolved.MinIdleConns = 2
	}
	return resolved
}

// parseRedisAddr 解析 host:port，端口缺失或非法时返回 0
func parseRedisAddr(addr string) (string, int) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
