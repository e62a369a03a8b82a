package scoring

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 评分项存储
type Store struct {
	db *gorm.DB
}

// NewStore 创建评分项存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListActive 查询评分组下启用的评分项，按 sort_order 排序
func (s *Store) ListActive(ctx context.Context, group string) ([]Criterion, error) {
	var criteria []Criterion
	if err := s.db.WithContext(ctx).
		Where("category_group = ? AND is_active = ?", group, true).
		Order("sort_order ASC, item ASC").
		Find(&criteria).Error; err != nil {
		return nil, fmt.Errorf("查询评分项失败: %w", err)
	}
	return criteria, nil
}

// Upsert 按 (评分组, 评分项) 写入或更新
func (s *Store) Upsert(ctx context.Context, c *Criterion) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "category_group"}, {Name: "item"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "label", "max_score", "rules", "input_key",
			"requires_key", "skip_if_key", "is_active", "sort_order", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("写入评分项失败: %w", err)
	}
	return nil
}

// SetActive 启用或停用评分项
func (s *Store) SetActive(ctx context.Context, group, item string, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&Criterion{}).
		Where("category_group = ? AND item = ?", group, item).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("更新评分项失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("评分项不存在: %s/%s", group, item)
	}
	return nil
}
