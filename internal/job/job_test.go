package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/content"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:job_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&Job{}, &content.GeneratedContent{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return db
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusInProgress, StatusDone, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusPending, StatusDone, false},
		{StatusDone, StatusInProgress, false},
		{StatusFailed, StatusPending, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusInProgress, StatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s → %s", tc.from, tc.to)
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := NewRepository(initTestDB(t))
	ctx := context.Background()

	j := &Job{TenantID: "t1", JobType: "blog_post", InputPayload: map[string]any{"topic": "露营"}}
	require.NoError(t, repo.Create(ctx, j))
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, TriggerManual, j.TriggerType)

	_, err := repo.MarkInProgress(ctx, j.ID)
	require.NoError(t, err)

	// 重复标记不合法
	_, err = repo.MarkInProgress(ctx, j.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	score := 82.0
	_, err = repo.Finish(ctx, j.ID, Outcome{
		Status:        StatusDone,
		Output:        map[string]any{"rewrites": 1},
		QualityResult: QualityPass,
		QualityScore:  &score,
		RetryCount:    1,
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, QualityPass, got.QualityGateResult)
	assert.Equal(t, 82.0, *got.QualityGateScore)
	assert.Equal(t, 1, got.RetryCount)
	assert.EqualValues(t, 1, got.OutputPayload["rewrites"])
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "露营", got.InputPayload["topic"])

	// 终态只写一次
	_, err = repo.Finish(ctx, j.ID, Outcome{Status: StatusFailed, ErrorMessage: "late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, repo.Cancel(ctx, j.ID), ErrInvalidTransition)

	_, err = repo.Finish(ctx, j.ID, Outcome{Status: StatusCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Cancel(ctx, "missing"), ErrNotFound)
}

func TestRepositoryClaimAndCount(t *testing.T) {
	repo := NewRepository(initTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		j := &Job{TenantID: "t1", JobType: "blog_post"}
		require.NoError(t, repo.Create(ctx, j))
		ids = append(ids, j.ID)
	}
	require.NoError(t, repo.Create(ctx, &Job{TenantID: "t2", JobType: "blog_post"}))
	require.NoError(t, repo.Create(ctx, &Job{TenantID: "t1", JobType: "sns_post"}))
	require.NoError(t, repo.Cancel(ctx, ids[0]))

	claimed, err := repo.ClaimPending(ctx, "blog_post", "t1", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, ids[1], claimed[0].ID)
	assert.Equal(t, ids[2], claimed[1].ID)

	all, err := repo.ClaimPending(ctx, "blog_post", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, counts[string(StatusPending)])
	assert.EqualValues(t, 1, counts[string(StatusCancelled)])
	assert.EqualValues(t, 0, counts[string(StatusDone)])
}

func TestCountByStatusEmpty(t *testing.T) {
	repo := NewRepository(initTestDB(t))
	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, len(AllStatuses))
	for _, n := range counts {
		assert.Zero(t, n)
	}
}

var errBoom = errors.New("boom")
