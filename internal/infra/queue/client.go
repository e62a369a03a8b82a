package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueProcessJob(ctx context.Context, jobID string) error
	EnqueueSweep(ctx context.Context, jobType, tenantID string) error
	Stats(ctx context.Context) (*QueueStats, error)
	Close() error
}

// QueueStats 流水线队列统计
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Completed int    `json:"completed"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

type asynqClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	timeout   time.Duration
}

// NewClient 创建任务队列客户端，timeout 为单个任务的执行超时
func NewClient(opt asynq.RedisConnOpt, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &asynqClient{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		timeout:   timeout,
	}
}

func (c *asynqClient) EnqueueProcessJob(ctx context.Context, jobID string) error {
	task, err := tasks.NewProcessJobTask(jobID, c.timeout)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		// 同一作业已在队列中
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) EnqueueSweep(ctx context.Context, jobType, tenantID string) error {
	task, err := tasks.NewSweepJobsTask(jobType, tenantID, c.timeout)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Stats(ctx context.Context) (*QueueStats, error) {
	info, err := c.inspector.GetQueueInfo(tasks.QueuePipeline)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return &QueueStats{Queue: tasks.QueuePipeline}, nil
		}
		return nil, fmt.Errorf("get queue info failed: %w", err)
	}
	return &QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Completed: info.Completed,
		Processed: info.Processed,
		Failed:    info.Failed,
	}, nil
}

func (c *asynqClient) Close() error {
	if err := c.inspector.Close(); err != nil {
		return err
	}
	return c.client.Close()
}
