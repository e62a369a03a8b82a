package scoring

import (
	"sync"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/metrics"
)

// DefaultCacheTTL 评分项缓存默认有效期
const DefaultCacheTTL = 5 * time.Minute

const cacheType = "scoring_criteria"

// Cache 评分项缓存接口
type Cache interface {
	Get(group string) ([]Criterion, bool)
	Set(group string, criteria []Criterion)
	Generation() uint64
	SetIfGeneration(group string, criteria []Criterion, gen uint64) bool
	Invalidate()
	InvalidateGroup(group string)
}

type cacheEntry struct {
	criteria  []Criterion
	expiresAt time.Time
}

// CriteriaCache 按评分组缓存评分项，带 TTL，可随时失效
// 返回的切片只读，调用方不得修改
// 每次失效递增 generation，读库期间发生过失效的结果不会回填
type CriteriaCache struct {
	ttl        time.Duration
	entries    map[string]cacheEntry
	generation uint64
	mu         sync.RWMutex
	now        func() time.Time
}

// NewCriteriaCache 创建缓存，ttl <= 0 时使用 DefaultCacheTTL
func NewCriteriaCache(ttl time.Duration) *CriteriaCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CriteriaCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get 读取缓存，过期视为未命中
func (c *CriteriaCache) Get(group string) ([]Criterion, bool) {
	c.mu.RLock()
	entry, ok := c.entries[group]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		metrics.CacheMissesTotal.WithLabelValues(cacheType).Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	return entry.criteria, true
}

// Set 无条件写入缓存
func (c *CriteriaCache) Set(group string, criteria []Criterion) {
	stored := make([]Criterion, len(criteria))
	copy(stored, criteria)

	c.mu.Lock()
	c.entries[group] = cacheEntry{criteria: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Generation 当前失效代数，读库前取得，回填时交给 SetIfGeneration
func (c *CriteriaCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// SetIfGeneration 仅当期间没有发生失效时写入，返回是否写入
func (c *CriteriaCache) SetIfGeneration(group string, criteria []Criterion, gen uint64) bool {
	stored := make([]Criterion, len(criteria))
	copy(stored, criteria)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.entries[group] = cacheEntry{criteria: stored, expiresAt: c.now().Add(c.ttl)}
	return true
}

// Invalidate 清空全部缓存
func (c *CriteriaCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.generation++
	c.mu.Unlock()
	metrics.CacheInvalidationsTotal.WithLabelValues(cacheType, "all").Inc()
}

// InvalidateGroup 清除指定评分组
func (c *CriteriaCache) InvalidateGroup(group string) {
	c.mu.Lock()
	delete(c.entries, group)
	c.generation++
	c.mu.Unlock()
	metrics.CacheInvalidationsTotal.WithLabelValues(cacheType, "group").Inc()
}
