package scoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CriteriaSource 评分项数据源
type CriteriaSource interface {
	ListActive(ctx context.Context, group string) ([]Criterion, error)
}

// Engine 规则评分引擎
type Engine struct {
	source CriteriaSource
	cache  Cache
	logger *zap.Logger
}

// NewEngine 创建评分引擎，缓存由调用方注入
func NewEngine(source CriteriaSource, cache Cache, logger *zap.Logger) *Engine {
	if cache == nil {
		cache = NewCriteriaCache(DefaultCacheTTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, cache: cache, logger: logger}
}

// Cache 返回引擎使用的缓存
func (e *Engine) Cache() Cache {
	return e.cache
}

// LoadCriteria 加载评分组下启用的评分项，优先读缓存
func (e *Engine) LoadCriteria(ctx context.Context, group string) ([]Criterion, error) {
	if criteria, ok := e.cache.Get(group); ok {
		return criteria, nil
	}

	gen := e.cache.Generation()
	criteria, err := e.source.ListActive(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("加载评分组 %s 失败: %w", group, err)
	}
	if !e.cache.SetIfGeneration(group, criteria, gen) {
		// 读库期间缓存被失效，本次结果可能已过时，不回填
		e.logger.Debug("评分项加载期间缓存已失效，跳过回填", zap.String("group", group))
	}
	e.logger.Debug("评分项已加载", zap.String("group", group), zap.Int("count", len(criteria)))
	return criteria, nil
}

// ScoreSubject 对评分对象进行综合评分
func (e *Engine) ScoreSubject(ctx context.Context, group string, inputs map[string]any) (*Summary, error) {
	criteria, err := e.LoadCriteria(ctx, group)
	if err != nil {
		return nil, err
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	summary := Aggregate(group, criteria, inputs)
	e.logger.Debug("评分完成",
		zap.String("group", group),
		zap.Int("total", summary.Total),
		zap.Int("measurable_max", summary.MeasurableMax),
		zap.Int("normalized", summary.Normalized),
		zap.Int("skipped", len(summary.Skipped)),
	)
	return summary, nil
}
