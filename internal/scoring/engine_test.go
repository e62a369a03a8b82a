package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type countingSource struct {
	mu       sync.Mutex
	calls    int
	criteria map[string][]Criterion
	err      error
}

func (s *countingSource) ListActive(_ context.Context, group string) ([]Criterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.criteria[group], nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestEngineLoadCriteriaUsesCache(t *testing.T) {
	source := &countingSource{criteria: map[string][]Criterion{"blog": {tieredCriterion()}}}
	cache := NewCriteriaCache(time.Minute)
	engine := NewEngine(source, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		criteria, err := engine.LoadCriteria(ctx, "blog")
		require.NoError(t, err)
		assert.Len(t, criteria, 1)
	}
	assert.Equal(t, 1, source.callCount())

	cache.Invalidate()
	_, err := engine.LoadCriteria(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

// invalidatingSource 在返回结果前触发一次缓存失效，模拟读库与失效并发
type invalidatingSource struct {
	countingSource
	cache *CriteriaCache
	once  sync.Once
}

func (s *invalidatingSource) ListActive(ctx context.Context, group string) ([]Criterion, error) {
	criteria, err := s.countingSource.ListActive(ctx, group)
	s.once.Do(s.cache.Invalidate)
	return criteria, err
}

func TestEngineLoadCriteriaSkipsStaleFillAfterInvalidate(t *testing.T) {
	cache := NewCriteriaCache(time.Minute)
	source := &invalidatingSource{
		countingSource: countingSource{criteria: map[string][]Criterion{"blog": {tieredCriterion()}}},
		cache:          cache,
	}
	engine := NewEngine(source, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	criteria, err := engine.LoadCriteria(ctx, "blog")
	require.NoError(t, err)
	assert.Len(t, criteria, 1)

	_, ok := cache.Get("blog")
	assert.False(t, ok, "读库期间发生失效时不应回填缓存")

	_, err = engine.LoadCriteria(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
	_, ok = cache.Get("blog")
	assert.True(t, ok)
}

func TestCriteriaCacheSetIfGeneration(t *testing.T) {
	cache := NewCriteriaCache(time.Minute)
	gen := cache.Generation()

	cache.InvalidateGroup("other")
	assert.False(t, cache.SetIfGeneration("blog", []Criterion{{Item: "a"}}, gen))
	_, ok := cache.Get("blog")
	assert.False(t, ok)

	assert.True(t, cache.SetIfGeneration("blog", []Criterion{{Item: "a"}}, cache.Generation()))
	_, ok = cache.Get("blog")
	assert.True(t, ok)
}

func TestCriteriaCacheExpires(t *testing.T) {
	cache := NewCriteriaCache(5 * time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("blog", []Criterion{{Item: "a"}})
	_, ok := cache.Get("blog")
	assert.True(t, ok)

	now = now.Add(4*time.Minute + 59*time.Second)
	_, ok = cache.Get("blog")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = cache.Get("blog")
	assert.False(t, ok, "TTL 到期后应未命中")
}

func TestCriteriaCacheInvalidateGroup(t *testing.T) {
	cache := NewCriteriaCache(0)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)

	cache.Set("a", nil)
	cache.Set("b", nil)
	cache.InvalidateGroup("a")

	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
}

func TestLocalInvalidator(t *testing.T) {
	cache := NewCriteriaCache(time.Minute)
	inv := NewLocalInvalidator(cache)
	ctx := context.Background()

	cache.Set("a", nil)
	cache.Set("b", nil)
	require.NoError(t, inv.Invalidate(ctx, "a"))
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)

	require.NoError(t, inv.Invalidate(ctx, ""))
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestCriteriaCacheConcurrentAccess(t *testing.T) {
	cache := NewCriteriaCache(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			group := fmt.Sprintf("g%d", i%3)
			cache.Set(group, []Criterion{{Item: group}})
			cache.Get(group)
			if i%5 == 0 {
				cache.Invalidate()
			}
		}(i)
	}
	wg.Wait()
}

func TestEngineScoreSubjectPropagatesLoadError(t *testing.T) {
	engine := NewEngine(&countingSource{err: errors.New("db down")}, NewCriteriaCache(time.Minute), nil)
	_, err := engine.ScoreSubject(context.Background(), "blog", nil)
	assert.Error(t, err)
}

func TestInvalidatorIgnoresOwnMessages(t *testing.T) {
	cache := NewCriteriaCache(time.Minute)
	inv := NewRedisInvalidator(nil, "test", cache, zaptest.NewLogger(t))

	cache.Set("blog", []Criterion{{Item: "a"}})
	inv.handleMessage(fmt.Sprintf(`{"group":"blog","origin":%q}`, inv.instanceID))
	_, ok := cache.Get("blog")
	assert.True(t, ok, "自身广播不应重复失效")

	inv.handleMessage(`{"group":"blog","origin":"other-instance"}`)
	_, ok = cache.Get("blog")
	assert.False(t, ok)

	cache.Set("x", nil)
	inv.handleMessage(`{"origin":"other-instance"}`)
	_, ok = cache.Get("x")
	assert.False(t, ok, "空评分组表示全部失效")

	inv.handleMessage("not json")
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:scoring_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&Criterion{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return db
}

func TestSeedAndScoreFromDatabase(t *testing.T) {
	db := initTestDB(t)
	store := NewStore(db)
	cache := NewCriteriaCache(time.Minute)
	engine := NewEngine(store, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "criteria.yaml")
	content := `groups:
  - group: blog_post
    criteria:
      - category: content
        item: word_count
        label: 字数
        max_score: 40
        rules:
          - {condition: ">=800", score_pct: 100, label: 充足}
          - {condition: ">=300", score_pct: 50, label: 一般}
          - {condition: default, score_pct: 0, label: 不足}
      - category: seo
        item: keyword_hits
        label: 关键词命中
        max_score: 60
        rules:
          - {condition: ">=3", score_pct: 100, label: 充分}
          - {condition: ">=1", score_pct: 50, label: 部分}
          - {condition: default, score_pct: 0, label: 未命中}
      - category: legacy
        item: backlinks
        max_score: 10
        inactive: true
        rules:
          - {condition: exists, score_pct: 100}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	groups, err := LoadSeedFile(path)
	require.NoError(t, err)

	// 先填充缓存，确认导入后缓存被失效
	_, err = engine.LoadCriteria(ctx, "blog_post")
	require.NoError(t, err)

	n, err := Seed(ctx, store, cache, groups)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	criteria, err := engine.LoadCriteria(ctx, "blog_post")
	require.NoError(t, err)
	require.Len(t, criteria, 2, "停用的评分项不参与评分")
	assert.Equal(t, "word_count", criteria[0].Item)
	require.Len(t, criteria[0].Rules, 3)

	summary, err := engine.ScoreSubject(ctx, "blog_post", map[string]any{"word_count": 500, "keyword_hits": 4})
	require.NoError(t, err)
	assert.Equal(t, 80, summary.Total)
	assert.Equal(t, 100, summary.MeasurableMax)
	assert.Equal(t, 80, summary.Normalized)

	// 再次导入走 upsert，不产生重复行
	_, err = Seed(ctx, store, cache, groups)
	require.NoError(t, err)
	var count int64
	db.Model(&Criterion{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestLoadSeedFileRejectsInvalidCriterion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - group: g\n    criteria:\n      - item: x\n"), 0o644))
	_, err := LoadSeedFile(path)
	assert.Error(t, err)
}
