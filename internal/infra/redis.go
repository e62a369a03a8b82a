package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

var globalRedis redis.UniversalClient

// universalOptions 把配置转换为 go-redis 通用参数，并校验各模式的必填项
func universalOptions(cfg *config.RedisConfig) (string, *redis.UniversalOptions, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "standalone"
	}

	opts := &redis.UniversalOptions{
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}

	switch mode {
	case "standalone":
		opts.Addrs = []string{cfg.Addr()}
	case "sentinel":
		if cfg.MasterName == "" || len(cfg.SentinelAddrs) == 0 {
			return "", nil, fmt.Errorf("哨兵模式需要配置 master_name 和 sentinel_addrs")
		}
		opts.MasterName = cfg.MasterName
		opts.Addrs = cfg.SentinelAddrs
		opts.SentinelPassword = cfg.SentinelPassword
	case "cluster":
		if len(cfg.ClusterAddrs) == 0 {
			return "", nil, fmt.Errorf("集群模式需要配置 cluster_addrs")
		}
		// 集群不支持选库
		opts.DB = 0
		opts.Addrs = cfg.ClusterAddrs
	default:
		return "", nil, fmt.Errorf("不支持的 Redis 模式: %s (可选: standalone, sentinel, cluster)", mode)
	}
	return mode, opts, nil
}

// InitRedis 初始化 Redis 连接，Ping 失败时关闭客户端并返回错误
// 作业队列、定时扫描与评分缓存失效广播共用此连接配置
func InitRedis(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	mode, opts, err := universalOptions(cfg)
	if err != nil {
		return nil, err
	}

	var rdb redis.UniversalClient
	switch mode {
	case "sentinel":
		rdb = redis.NewFailoverClient(opts.Failover())
	case "cluster":
		rdb = redis.NewClusterClient(opts.Cluster())
	default:
		rdb = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败 (%s): %w", mode, err)
	}

	logger.Info("Redis 连接成功",
		zap.String("mode", mode),
		zap.Strings("addrs", opts.Addrs),
		zap.Int("db", opts.DB),
	)
	globalRedis = rdb
	return rdb, nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis() error {
	if globalRedis == nil {
		return nil
	}
	err := globalRedis.Close()
	globalRedis = nil
	return err
}

// AsynqRedisOpt 将 Redis 配置转换为 asynq 连接参数
func AsynqRedisOpt(cfg *config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}
