package invocation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrLogNotFound 执行日志不存在
var ErrLogNotFound = errors.New("execution log not found")

// LogWriter 执行日志写入接口
type LogWriter interface {
	Write(ctx context.Context, log *ExecutionLog) error
}

// LogStore 基于数据库的执行日志存储
type LogStore struct {
	db *gorm.DB
}

// NewLogStore 创建执行日志存储
func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// Write 写入一条日志
func (s *LogStore) Write(ctx context.Context, log *ExecutionLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("写入执行日志失败: %w", err)
	}
	return nil
}

// ListByChain 查询链路下的全部日志，按步骤排序
func (s *LogStore) ListByChain(ctx context.Context, chainID string) ([]ExecutionLog, error) {
	var logs []ExecutionLog
	if err := s.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("step_index ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询执行日志失败: %w", err)
	}
	return logs, nil
}

// Get 按 ID 查询日志
func (s *LogStore) Get(ctx context.Context, id string) (*ExecutionLog, error) {
	var log ExecutionLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("查询执行日志失败: %w", err)
	}
	return &log, nil
}
