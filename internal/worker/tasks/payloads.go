package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeProcessJob = "job:process"
	TypeSweepJobs  = "job:sweep"
)

// QueuePipeline 流水线专用队列
const QueuePipeline = "pipeline"

// ProcessJobPayload 单个作业处理任务载荷
type ProcessJobPayload struct {
	JobID string `json:"job_id"`
}

// SweepJobsPayload 批量扫描任务载荷
type SweepJobsPayload struct {
	JobType  string `json:"job_type"`
	TenantID string `json:"tenant_id,omitempty"`
}

// NewProcessJobTask 构造作业处理任务，任务 ID 取作业 ID 防止重复入队
func NewProcessJobTask(jobID string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessJobPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	// 生成失败不自动重试
	return asynq.NewTask(TypeProcessJob, payload,
		asynq.TaskID("job:"+jobID),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Queue(QueuePipeline),
	), nil
}

// NewSweepJobsTask 构造批量扫描任务
func NewSweepJobsTask(jobType, tenantID string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepJobsPayload{JobType: jobType, TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeSweepJobs, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Queue(QueuePipeline),
	), nil
}
