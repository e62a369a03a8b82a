package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fiftycompanies/waide-sub001/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// invalidation 失效广播消息，Group 为空表示全部
type invalidation struct {
	Group  string `json:"group,omitempty"`
	Origin string `json:"origin"`
}

// RedisInvalidator 通过 Redis Pub/Sub 在多个实例间广播缓存失效
type RedisInvalidator struct {
	rdb        redis.UniversalClient
	channel    string
	cache      Cache
	instanceID string
	logger     *zap.Logger
}

// NewRedisInvalidator 创建失效广播器
func NewRedisInvalidator(rdb redis.UniversalClient, channel string, cache Cache, logger *zap.Logger) *RedisInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisInvalidator{
		rdb:        rdb,
		channel:    channel,
		cache:      cache,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
}

// Invalidate 本地立即失效并广播给其他实例，group 为空时清空全部
func (r *RedisInvalidator) Invalidate(ctx context.Context, group string) error {
	r.apply(group)

	payload, err := json.Marshal(invalidation{Group: group, Origin: r.instanceID})
	if err != nil {
		return fmt.Errorf("序列化失效消息失败: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("广播缓存失效失败: %w", err)
	}
	return nil
}

// Run 订阅失效频道直到 ctx 取消
func (r *RedisInvalidator) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("订阅失效频道失败: %w", err)
	}
	r.logger.Info("评分缓存失效订阅已启动", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handleMessage(msg.Payload)
		}
	}
}

// handleMessage 处理其他实例发来的失效消息，忽略自身消息
func (r *RedisInvalidator) handleMessage(payload string) {
	var msg invalidation
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("无法解析缓存失效消息", zap.String("payload", payload), zap.Error(err))
		return
	}
	if msg.Origin == r.instanceID {
		return
	}
	r.apply(msg.Group)
	metrics.CacheInvalidationsTotal.WithLabelValues(cacheType, "remote").Inc()
	r.logger.Debug("收到远端缓存失效", zap.String("group", msg.Group), zap.String("origin", msg.Origin))
}

func (r *RedisInvalidator) apply(group string) {
	if group == "" {
		r.cache.Invalidate()
		return
	}
	r.cache.InvalidateGroup(group)
}

// LocalInvalidator 单实例部署时只清理本地缓存
type LocalInvalidator struct {
	cache Cache
}

// NewLocalInvalidator 创建本地失效器
func NewLocalInvalidator(cache Cache) *LocalInvalidator {
	return &LocalInvalidator{cache: cache}
}

// Invalidate group 为空时清空全部
func (l *LocalInvalidator) Invalidate(_ context.Context, group string) error {
	if group == "" {
		l.cache.Invalidate()
	} else {
		l.cache.InvalidateGroup(group)
	}
	return nil
}
