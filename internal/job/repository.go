package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository 作业存储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建作业存储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建 PENDING 作业
func (r *Repository) Create(ctx context.Context, j *Job) error {
	j.Status = StatusPending
	if j.TriggerType == "" {
		j.TriggerType = TriggerManual
	}
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("创建作业失败: %w", err)
	}
	return nil
}

// Get 按 ID 查询
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询作业失败: %w", err)
	}
	return &j, nil
}

// MarkInProgress PENDING → IN_PROGRESS
func (r *Repository) MarkInProgress(ctx context.Context, id string) (time.Time, error) {
	now := time.Now().UTC()
	err := r.transition(ctx, id, []Status{StatusPending}, map[string]any{
		"status":     StatusInProgress,
		"started_at": now,
	})
	return now, err
}

// Finish 写入终态（DONE / FAILED），只在作业尚未结束时生效
func (r *Repository) Finish(ctx context.Context, id string, out Outcome) (time.Time, error) {
	if out.Status != StatusDone && out.Status != StatusFailed {
		return time.Time{}, fmt.Errorf("%w: 不能以 %s 结束作业", ErrInvalidTransition, out.Status)
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       out.Status,
		"retry_count":  out.RetryCount,
		"completed_at": now,
	}
	if out.Output != nil {
		updates["output_payload"] = datatypes.JSONMap(out.Output)
	}
	if out.QualityResult != "" {
		updates["quality_gate_result"] = out.QualityResult
		updates["quality_gate_notes"] = out.QualityNotes
	}
	if out.QualityScore != nil {
		updates["quality_gate_score"] = *out.QualityScore
	}
	if out.ErrorMessage != "" {
		updates["error_message"] = out.ErrorMessage
	}

	return now, r.transition(ctx, id, []Status{StatusPending, StatusInProgress}, updates)
}

// Cancel 外部取消 PENDING / IN_PROGRESS 作业
func (r *Repository) Cancel(ctx context.Context, id string) error {
	return r.transition(ctx, id, []Status{StatusPending, StatusInProgress}, map[string]any{
		"status":       StatusCancelled,
		"completed_at": time.Now().UTC(),
	})
}

// ClaimPending 按创建时间取出最多 limit 个 PENDING 作业，tenantID 为空时不过滤租户
func (r *Repository) ClaimPending(ctx context.Context, jobType, tenantID string, limit int) ([]Job, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND job_type = ?", StatusPending, jobType)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var jobs []Job
	if err := query.Order("created_at ASC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("查询待处理作业失败: %w", err)
	}
	return jobs, nil
}

// CountByStatus 按状态统计作业数
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计作业状态失败: %w", err)
	}

	counts := make(map[string]int64, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[string(s)] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// transition 条件更新：只有当前状态在 from 中时才写入
func (r *Repository) transition(ctx context.Context, id string, from []Status, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新作业状态失败: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s → %v", ErrInvalidTransition, current.Status, updates["status"])
}
