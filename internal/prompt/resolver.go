package prompt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loader 模板加载接口
type Loader interface {
	FindActive(ctx context.Context, role, task string) (*PromptTemplate, error)
	FindActiveBySection(ctx context.Context, role, section string) (*PromptTemplate, error)
}

type cachedTemplate struct {
	tmpl      *PromptTemplate
	expiresAt time.Time
}

// Resolver 模板解析器
// 先按 (角色, 任务) 查找，再按 (角色, 段落 = 任务) 回退；命中结果在进程内短暂缓存
type Resolver struct {
	loader Loader
	ttl    time.Duration
	cache  map[string]cachedTemplate
	mu     sync.RWMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewResolver 创建模板解析器，ttl <= 0 时不缓存
func NewResolver(loader Loader, ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		loader: loader,
		ttl:    ttl,
		cache:  make(map[string]cachedTemplate),
		logger: logger,
		now:    time.Now,
	}
}

// Resolve 解析当前生效的模板，找不到时返回 ErrTemplateNotFound
func (r *Resolver) Resolve(ctx context.Context, role, task string) (*PromptTemplate, error) {
	key := role + "/" + task

	if r.ttl > 0 {
		r.mu.RLock()
		entry, ok := r.cache[key]
		r.mu.RUnlock()
		if ok && r.now().Before(entry.expiresAt) {
			return entry.tmpl, nil
		}
	}

	tmpl, err := r.loader.FindActive(ctx, role, task)
	if errors.Is(err, ErrTemplateNotFound) {
		tmpl, err = r.loader.FindActiveBySection(ctx, role, task)
		if err == nil {
			r.logger.Debug("按旧版段落键解析模板",
				zap.String("agent_role", role),
				zap.String("section", task),
				zap.Int("version", tmpl.Version),
			)
		}
	}
	if err != nil {
		return nil, err
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[key] = cachedTemplate{tmpl: tmpl, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return tmpl, nil
}

// ClearCache 清理缓存，role 为空时全部清理
func (r *Resolver) ClearCache(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role == "" {
		r.cache = make(map[string]cachedTemplate)
		return
	}
	for key := range r.cache {
		if strings.HasPrefix(key, role+"/") {
			delete(r.cache, key)
		}
	}
}
