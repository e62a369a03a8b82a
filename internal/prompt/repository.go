package prompt

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrTemplateNotFound 按任务与旧版段落均未找到可用模板
// 属于配置错误，调用方不应重试
var ErrTemplateNotFound = errors.New("prompt template not found")

// Repository 模板存储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建模板存储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActive 查询 (角色, 任务) 下版本号最高的启用模板
func (r *Repository) FindActive(ctx context.Context, role, task string) (*PromptTemplate, error) {
	return r.findLatest(ctx, r.db.WithContext(ctx).Where("agent_role = ? AND task = ?", role, task))
}

// FindActiveBySection 按旧版段落键查询，选择规则同 FindActive
func (r *Repository) FindActiveBySection(ctx context.Context, role, section string) (*PromptTemplate, error) {
	return r.findLatest(ctx, r.db.WithContext(ctx).Where("agent_role = ? AND section = ?", role, section))
}

func (r *Repository) findLatest(_ context.Context, q *gorm.DB) (*PromptTemplate, error) {
	var tmpl PromptTemplate
	err := q.Where("is_active = ?", true).
		Order("version DESC").
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("查询模板失败: %w", err)
	}
	return &tmpl, nil
}

// Publish 发布新版本：版本号 = 当前最大版本 + 1，历史版本保持不变
func (r *Repository) Publish(ctx context.Context, tmpl *PromptTemplate) error {
	if tmpl.AgentRole == "" || tmpl.Task == "" {
		return fmt.Errorf("agent_role 与 task 不能为空")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&PromptTemplate{}).
			Where("agent_role = ? AND task = ?", tmpl.AgentRole, tmpl.Task).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("查询最新版本失败: %w", err)
		}

		tmpl.ID = ""
		tmpl.Version = maxVersion + 1
		tmpl.IsActive = true
		if err := tx.Create(tmpl).Error; err != nil {
			return fmt.Errorf("创建模板版本失败: %w", err)
		}
		return nil
	})
}

// ListVersions 列出 (角色, 任务) 的全部历史版本，新版本在前
func (r *Repository) ListVersions(ctx context.Context, role, task string) ([]PromptTemplate, error) {
	var versions []PromptTemplate
	if err := r.db.WithContext(ctx).
		Where("agent_role = ? AND task = ?", role, task).
		Order("version DESC").
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("查询模板版本失败: %w", err)
	}
	return versions, nil
}

// Deactivate 停用指定版本
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&PromptTemplate{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("停用模板失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
