package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fiftycompanies/waide-sub001/internal/job"
	"github.com/fiftycompanies/waide-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// JobProcessor 作业流水线抽象，便于注入 mock
type JobProcessor interface {
	ProcessJob(ctx context.Context, j *job.Job) (*job.Job, error)
	SweepPending(ctx context.Context, jobType, tenantID string) ([]job.JobResult, error)
}

// JobLoader 作业查询
type JobLoader interface {
	Get(ctx context.Context, id string) (*job.Job, error)
}

type JobHandler struct {
	pipeline JobProcessor
	jobs     JobLoader
	logger   *zap.Logger
}

func NewJobHandler(pipeline JobProcessor, jobs JobLoader, logger *zap.Logger) *JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandler{
		pipeline: pipeline,
		jobs:     jobs,
		logger:   logger,
	}
}

// HandleProcessJob 处理单个作业
func (h *JobHandler) HandleProcessJob(ctx context.Context, t *asynq.Task) error {
	var p tasks.ProcessJobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	j, err := h.jobs.Get(ctx, p.JobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			h.logger.Warn("作业不存在，跳过", zap.String("job_id", p.JobID))
			return nil
		}
		return err
	}
	if j.Status.Terminal() {
		h.logger.Info("作业已结束，跳过",
			zap.String("job_id", p.JobID),
			zap.String("status", string(j.Status)),
		)
		return nil
	}

	h.logger.Info("开始处理作业",
		zap.String("job_id", j.ID),
		zap.String("job_type", j.JobType),
	)

	done, err := h.pipeline.ProcessJob(ctx, j)
	if err != nil {
		h.logger.Error("作业处理失败",
			zap.String("job_id", j.ID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("作业处理完成",
		zap.String("job_id", done.ID),
		zap.String("status", string(done.Status)),
	)
	return nil
}

// HandleSweepJobs 批量处理待执行作业
func (h *JobHandler) HandleSweepJobs(ctx context.Context, t *asynq.Task) error {
	var p tasks.SweepJobsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.JobType == "" {
		return fmt.Errorf("job_type is required: %w", asynq.SkipRetry)
	}

	results, err := h.pipeline.SweepPending(ctx, p.JobType, p.TenantID)
	if err != nil {
		h.logger.Error("批量扫描失败",
			zap.String("job_type", p.JobType),
			zap.Error(err),
		)
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Status != job.StatusDone {
			failed++
		}
	}
	h.logger.Info("批量扫描完成",
		zap.String("job_type", p.JobType),
		zap.String("tenant_id", p.TenantID),
		zap.Int("processed", len(results)),
		zap.Int("failed", failed),
	)
	return nil
}
