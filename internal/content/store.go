package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound 内容不存在
var ErrNotFound = errors.New("content not found")

// Store 生成内容存储
type Store struct {
	db *gorm.DB
}

// NewStore 创建内容存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateDraft 保存草稿
func (s *Store) CreateDraft(ctx context.Context, c *GeneratedContent) error {
	c.Status = StatusDraft
	c.WordCount = CountWords(c.Body)
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("保存内容草稿失败: %w", err)
	}
	return nil
}

// Get 按 ID 查询
func (s *Store) Get(ctx context.Context, id string) (*GeneratedContent, error) {
	var c GeneratedContent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询内容失败: %w", err)
	}
	return &c, nil
}

// UpdateBody 更新正文（重写后使用）
func (s *Store) UpdateBody(ctx context.Context, id, body string) error {
	result := s.db.WithContext(ctx).
		Model(&GeneratedContent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"body":       body,
			"word_count": CountWords(body),
		})
	if result.Error != nil {
		return fmt.Errorf("更新内容失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Promote 更新内容状态与质检分数
func (s *Store) Promote(ctx context.Context, id string, status Status, score float64) error {
	updates := map[string]any{
		"status":        status,
		"quality_score": score,
	}
	if status == StatusApproved {
		updates["approved_at"] = time.Now().UTC()
	}

	result := s.db.WithContext(ctx).
		Model(&GeneratedContent{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新内容状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByJob 查询作业产出的内容
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]GeneratedContent, error) {
	var contents []GeneratedContent
	if err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&contents).Error; err != nil {
		return nil, fmt.Errorf("查询作业内容失败: %w", err)
	}
	return contents, nil
}
