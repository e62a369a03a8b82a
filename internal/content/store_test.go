package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:content_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&GeneratedContent{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return db
}

func TestStoreDraftLifecycle(t *testing.T) {
	store := NewStore(initTestDB(t))
	ctx := context.Background()

	c := &GeneratedContent{TenantID: "t1", JobID: "job-1", Title: "标题", Body: "hello world"}
	require.NoError(t, store.CreateDraft(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Equal(t, 2, got.WordCount)

	require.NoError(t, store.UpdateBody(ctx, c.ID, "重写后的正文"))
	got, err = store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "重写后的正文", got.Body)
	assert.Equal(t, 6, got.WordCount)

	require.NoError(t, store.Promote(ctx, c.ID, StatusApproved, 88))
	got, err = store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, got.QualityScore)
	assert.Equal(t, 88.0, *got.QualityScore)
	assert.NotNil(t, got.ApprovedAt)

	list, err := store.ListByJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStoreMissingContent(t *testing.T) {
	store := NewStore(initTestDB(t))
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.UpdateBody(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, store.Promote(ctx, "missing", StatusApproved, 1), ErrNotFound)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 3, CountWords("one two  three"))
	assert.Equal(t, 4, CountWords("露营装备"))
	assert.Equal(t, 5, CountWords("Go 语言实践!"))
}
