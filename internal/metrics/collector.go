package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// JobStatusCounter 按状态统计作业数量
type JobStatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// SystemCollector 定期采集数据库连接与作业积压指标
type SystemCollector struct {
	db       *sql.DB
	jobs     JobStatusCounter
	interval time.Duration
	logger   *zap.Logger
}

// NewSystemCollector 创建指标收集器
func NewSystemCollector(db *sql.DB, jobs JobStatusCounter, logger *zap.Logger) *SystemCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemCollector{
		db:       db,
		jobs:     jobs,
		interval: 15 * time.Second,
		logger:   logger,
	}
}

// Run 定期采集，ctx 取消时退出
func (c *SystemCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.CollectOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce 采集一次
func (c *SystemCollector) CollectOnce(ctx context.Context) {
	if c.db != nil {
		stats := c.db.Stats()
		DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
		DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	}

	if c.jobs != nil {
		counts, err := c.jobs.CountByStatus(ctx)
		if err != nil {
			c.logger.Warn("采集作业状态失败", zap.Error(err))
			return
		}
		for status, n := range counts {
			JobsByStatus.WithLabelValues(status).Set(float64(n))
		}
	}
}
